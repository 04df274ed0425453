package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "mhp-cloud/internal/billing/domain"
)

// BillRepository is an in-memory bill store for tests and demos.
type BillRepository struct {
	mu    sync.RWMutex
	bills map[string]*billing.UtilityBill
}

// NewBillRepository constructs a repository.
func NewBillRepository() *BillRepository {
	return &BillRepository{bills: make(map[string]*billing.UtilityBill)}
}

func cloneBill(bill *billing.UtilityBill) *billing.UtilityBill {
	if bill == nil {
		return nil
	}
	copy := *bill
	copy.Charges = append([]billing.UtilityCharge(nil), bill.Charges...)
	return &copy
}

// FindActiveByLotAndPeriod returns the non-voided bill for the lot and period.
func (r *BillRepository) FindActiveByLotAndPeriod(ctx context.Context, lotID string, period billing.BillingPeriod) (*billing.UtilityBill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, bill := range r.bills {
		if bill.LotID == lotID && bill.Period.Key() == period.Key() && bill.Status != billing.BillStatusVoided {
			return cloneBill(bill), nil
		}
	}
	return nil, nil
}

// NextVersion counts all bills for the lot and period, voided included.
func (r *BillRepository) NextVersion(ctx context.Context, lotID string, period billing.BillingPeriod) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, bill := range r.bills {
		if bill.LotID == lotID && bill.Period.Key() == period.Key() {
			count++
		}
	}
	return count + 1, nil
}

// Create inserts a bill.
func (r *BillRepository) Create(ctx context.Context, bill *billing.UtilityBill) error {
	_ = ctx
	if bill == nil {
		return billing.ErrNilBill
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bills {
		if existing.LotID == bill.LotID && existing.Period.Key() == bill.Period.Key() && existing.Status != billing.BillStatusVoided {
			return &billing.DuplicateBillError{LotID: bill.LotID, PeriodKey: bill.Period.Key(), ExistingID: existing.ID}
		}
	}
	r.bills[bill.ID] = cloneBill(bill)
	return nil
}

// GetByID fetches a bill.
func (r *BillRepository) GetByID(ctx context.Context, id string) (*billing.UtilityBill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneBill(r.bills[id]), nil
}

// UpdateStatus overwrites the stored bill with the transitioned one.
func (r *BillRepository) UpdateStatus(ctx context.Context, bill *billing.UtilityBill) error {
	_ = ctx
	if bill == nil {
		return billing.ErrNilBill
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bills[bill.ID]; !ok {
		return billing.ErrBillNotFound
	}
	r.bills[bill.ID] = cloneBill(bill)
	return nil
}

// ListByPark lists bills for a park, newest first.
func (r *BillRepository) ListByPark(ctx context.Context, parkID string, period *billing.BillingPeriod) ([]*billing.UtilityBill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*billing.UtilityBill
	for _, bill := range r.bills {
		if bill.ParkID != parkID {
			continue
		}
		if period != nil && bill.Period.Key() != period.Key() {
			continue
		}
		result = append(result, cloneBill(bill))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// ListDueBefore lists pending or sent bills due before asOf.
func (r *BillRepository) ListDueBefore(ctx context.Context, asOf time.Time) ([]*billing.UtilityBill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*billing.UtilityBill
	for _, bill := range r.bills {
		if bill.Status != billing.BillStatusPending && bill.Status != billing.BillStatusSent {
			continue
		}
		if bill.DueDate.Before(asOf.UTC()) {
			result = append(result, cloneBill(bill))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
