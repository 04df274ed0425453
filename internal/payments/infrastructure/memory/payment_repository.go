package memory

import (
	"context"
	"sort"
	"sync"

	payments "mhp-cloud/internal/payments/domain"
)

// PaymentRepository is an in-memory payment store.
type PaymentRepository struct {
	mu      sync.RWMutex
	byID    map[string]*payments.Payment
	byRef   map[string]string
	byBills map[string][]string
}

// NewPaymentRepository constructs an empty repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		byID:    make(map[string]*payments.Payment),
		byRef:   make(map[string]string),
		byBills: make(map[string][]string),
	}
}

// Save stores a payment.
func (r *PaymentRepository) Save(_ context.Context, payment *payments.Payment) error {
	if err := payment.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[payment.Reference]; ok {
		return payments.ErrDuplicateReference
	}
	clone := *payment
	r.byID[payment.ID] = &clone
	r.byRef[payment.Reference] = payment.ID
	r.byBills[payment.BillID] = append(r.byBills[payment.BillID], payment.ID)
	return nil
}

// FindByReference returns the payment for a processor reference, or nil.
func (r *PaymentRepository) FindByReference(_ context.Context, reference string) (*payments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[reference]
	if !ok {
		return nil, nil
	}
	clone := *r.byID[id]
	return &clone, nil
}

// ListByBill returns payments for a bill ordered by receive time.
func (r *PaymentRepository) ListByBill(_ context.Context, billID string) ([]*payments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byBills[billID]
	result := make([]*payments.Payment, 0, len(ids))
	for _, id := range ids {
		clone := *r.byID[id]
		result = append(result, &clone)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ReceivedAt.Before(result[j].ReceivedAt)
	})
	return result, nil
}
