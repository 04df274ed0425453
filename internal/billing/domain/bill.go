package billing

import (
	"fmt"
	"time"
)

// BillStatus is the lifecycle state of a utility bill.
type BillStatus string

const (
	BillStatusPending BillStatus = "pending"
	BillStatusSent    BillStatus = "sent"
	BillStatusPaid    BillStatus = "paid"
	BillStatusOverdue BillStatus = "overdue"
	BillStatusVoided  BillStatus = "voided"
)

// UtilityBill is the billing-period aggregate for one lot. The total is
// always recomputed from the charges; there is no independently stored
// total that could drift.
type UtilityBill struct {
	ID       string
	TenantID string
	ParkID   string
	LotID    string
	Period   BillingPeriod
	Charges  []UtilityCharge
	Status   BillStatus
	DueDate  time.Time

	VoidReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SentAt     time.Time
	PaidAt     time.Time
	VoidedAt   time.Time
}

// BuildBillID builds a deterministic bill identity from lot, period, and
// version.
func BuildBillID(lotID string, period BillingPeriod, version int) (string, error) {
	if lotID == "" {
		return "", ErrEmptyLotID
	}
	if period.IsZero() || !period.Start.Before(period.End) {
		return "", ErrInvalidPeriod
	}
	return fmt.Sprintf("%s|%s|v%d", lotID, period.Key(), version), nil
}

// NewUtilityBill creates a bill in pending status.
func NewUtilityBill(id, tenantID, parkID, lotID string, period BillingPeriod, charges []UtilityCharge, dueDate, now time.Time) (*UtilityBill, error) {
	if lotID == "" {
		return nil, ErrEmptyLotID
	}
	if parkID == "" {
		return nil, ErrEmptyParkID
	}
	if period.IsZero() || !period.Start.Before(period.End) {
		return nil, ErrInvalidPeriod
	}
	for _, charge := range charges {
		if charge.Amount < 0 {
			return nil, fmt.Errorf("billing: negative charge amount for %s", charge.UtilityType)
		}
	}
	return &UtilityBill{
		ID:        id,
		TenantID:  tenantID,
		ParkID:    parkID,
		LotID:     lotID,
		Period:    period,
		Charges:   charges,
		Status:    BillStatusPending,
		DueDate:   dueDate.UTC(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// TotalAmount sums the charge amounts. It is computed on every read.
func (b *UtilityBill) TotalAmount() float64 {
	var total float64
	for _, charge := range b.Charges {
		total += charge.Amount
	}
	return RoundCents(total)
}

// MarkSent records notification dispatch. Allowed from pending only.
func (b *UtilityBill) MarkSent(now time.Time) error {
	if b.Status != BillStatusPending {
		return transitionError(b.Status, BillStatusSent)
	}
	b.Status = BillStatusSent
	b.SentAt = now.UTC()
	b.UpdatedAt = now.UTC()
	return nil
}

// MarkPaid records payment confirmation. Allowed from sent or overdue;
// late payment of an overdue bill remains possible. Paid is terminal.
func (b *UtilityBill) MarkPaid(now time.Time) error {
	if b.Status != BillStatusSent && b.Status != BillStatusOverdue {
		return transitionError(b.Status, BillStatusPaid)
	}
	b.Status = BillStatusPaid
	b.PaidAt = now.UTC()
	b.UpdatedAt = now.UTC()
	return nil
}

// MarkOverdue transitions after the due date without payment. Pending may
// move directly to overdue when no send event occurred before the due date.
func (b *UtilityBill) MarkOverdue(asOf time.Time) error {
	if b.Status != BillStatusPending && b.Status != BillStatusSent {
		return transitionError(b.Status, BillStatusOverdue)
	}
	if !asOf.UTC().After(b.DueDate) {
		return fmt.Errorf("%w: due date %s not yet passed", ErrInvalidStatusTransition, b.DueDate.Format("2006-01-02"))
	}
	b.Status = BillStatusOverdue
	b.UpdatedAt = asOf.UTC()
	return nil
}

// Void supersedes the bill so the period can be regenerated. A paid bill
// cannot be voided.
func (b *UtilityBill) Void(reason string, now time.Time) error {
	if b.Status == BillStatusPaid || b.Status == BillStatusVoided {
		return transitionError(b.Status, BillStatusVoided)
	}
	b.Status = BillStatusVoided
	b.VoidReason = reason
	b.VoidedAt = now.UTC()
	b.UpdatedAt = now.UTC()
	return nil
}

func transitionError(from, to BillStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
}
