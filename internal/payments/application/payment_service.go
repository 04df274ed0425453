package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	billingapp "mhp-cloud/internal/billing/application"
	billing "mhp-cloud/internal/billing/domain"
	"mhp-cloud/internal/observability/metrics"
	payments "mhp-cloud/internal/payments/domain"
)

// ConfirmPaymentCommand carries a processor payment confirmation.
type ConfirmPaymentCommand struct {
	BillID     string
	Amount     float64
	Method     string
	Reference  string
	ReceivedAt time.Time
}

// PaymentService records payment confirmations and settles bills. A
// confirmation covering the bill total moves the bill to paid; partial
// payments are recorded and leave the bill open.
type PaymentService struct {
	payments payments.PaymentRepository
	status   *billingapp.StatusService
	clock    billingapp.Clock
	logger   *log.Logger
}

// NewPaymentService constructs a payment service.
func NewPaymentService(repo payments.PaymentRepository, status *billingapp.StatusService, clock billingapp.Clock, logger *log.Logger) (*PaymentService, error) {
	if repo == nil {
		return nil, errors.New("payment service: nil repository")
	}
	if status == nil {
		return nil, errors.New("payment service: nil status service")
	}
	if clock == nil {
		clock = billingapp.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PaymentService{payments: repo, status: status, clock: clock, logger: logger}, nil
}

// Confirm records a payment confirmation. Confirmations are idempotent on
// the processor reference: a replay returns the stored payment.
func (s *PaymentService) Confirm(ctx context.Context, cmd ConfirmPaymentCommand) (*payments.Payment, error) {
	result := metrics.ResultSuccess
	payment, err := s.confirm(ctx, cmd)
	if err != nil && !errors.Is(err, payments.ErrDuplicateReference) {
		result = metrics.ResultError
	}
	metrics.IncPayment(result)
	if errors.Is(err, payments.ErrDuplicateReference) {
		return payment, nil
	}
	return payment, err
}

func (s *PaymentService) confirm(ctx context.Context, cmd ConfirmPaymentCommand) (*payments.Payment, error) {
	if cmd.Reference == "" {
		return nil, errors.New("payment service: empty reference")
	}
	existing, err := s.payments.FindByReference(ctx, cmd.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, payments.ErrDuplicateReference
	}

	bill, err := s.status.Get(ctx, cmd.BillID)
	if err != nil {
		return nil, err
	}

	receivedAt := cmd.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.clock.Now()
	}
	payment := &payments.Payment{
		ID:         payments.NewPaymentID(),
		TenantID:   bill.TenantID,
		BillID:     bill.ID,
		Amount:     billing.RoundCents(cmd.Amount),
		Method:     cmd.Method,
		Reference:  cmd.Reference,
		ReceivedAt: receivedAt.UTC(),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}

	settled, err := s.settledAmount(ctx, bill.ID)
	if err != nil {
		return nil, err
	}
	if settled+1e-9 < bill.TotalAmount() {
		s.logger.Printf("payment service: partial payment %s on bill %s (%.2f of %.2f)",
			payment.ID, bill.ID, settled, bill.TotalAmount())
		return payment, nil
	}
	if _, err := s.status.MarkPaid(ctx, bill.ID); err != nil {
		return nil, fmt.Errorf("payment service: settle bill %s: %w", bill.ID, err)
	}
	return payment, nil
}

// ListByBill returns payments recorded against a bill.
func (s *PaymentService) ListByBill(ctx context.Context, billID string) ([]*payments.Payment, error) {
	if billID == "" {
		return nil, errors.New("payment service: empty bill id")
	}
	return s.payments.ListByBill(ctx, billID)
}

func (s *PaymentService) settledAmount(ctx context.Context, billID string) (float64, error) {
	recorded, err := s.payments.ListByBill(ctx, billID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, payment := range recorded {
		total += payment.Amount
	}
	return billing.RoundCents(total), nil
}
