package payments

import (
	"context"
	"errors"
	"time"
)

// Payment methods accepted from the processor.
const (
	MethodCard   = "card"
	MethodACH    = "ach"
	MethodCheck  = "check"
	MethodManual = "manual"
)

var (
	// ErrNilPayment is returned when a nil payment is given.
	ErrNilPayment = errors.New("payments: nil payment")
	// ErrDuplicateReference is returned when a processor reference was
	// already recorded.
	ErrDuplicateReference = errors.New("payments: duplicate reference")
	// ErrPaymentNotFound is returned when a payment does not exist.
	ErrPaymentNotFound = errors.New("payments: payment not found")
)

// Payment records a confirmed payment against a bill. Reference is the
// processor's idempotency key.
type Payment struct {
	ID         string
	TenantID   string
	BillID     string
	Amount     float64
	Method     string
	Reference  string
	ReceivedAt time.Time
	CreatedAt  time.Time
}

// Validate checks payment invariants.
func (p *Payment) Validate() error {
	if p == nil {
		return ErrNilPayment
	}
	if p.ID == "" {
		return errors.New("payments: empty id")
	}
	if p.BillID == "" {
		return errors.New("payments: empty bill id")
	}
	if p.Amount <= 0 {
		return errors.New("payments: amount must be positive")
	}
	if p.Reference == "" {
		return errors.New("payments: empty reference")
	}
	switch p.Method {
	case MethodCard, MethodACH, MethodCheck, MethodManual:
	default:
		return errors.New("payments: unknown method " + p.Method)
	}
	if p.ReceivedAt.IsZero() {
		return errors.New("payments: zero received_at")
	}
	return nil
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	Save(ctx context.Context, payment *Payment) error
	FindByReference(ctx context.Context, reference string) (*Payment, error)
	ListByBill(ctx context.Context, billID string) ([]*Payment, error)
}
