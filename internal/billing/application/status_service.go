package application

import (
	"context"
	"errors"
	"log"

	"mhp-cloud/internal/auth"
	billing "mhp-cloud/internal/billing/domain"
	"mhp-cloud/internal/observability/metrics"
)

// StatusService drives the bill lifecycle.
type StatusService struct {
	bills     billing.BillRepository
	publisher EventPublisher
	clock     Clock
	logger    *log.Logger
	tenantID  string
}

// NewStatusService constructs a status service.
func NewStatusService(bills billing.BillRepository, publisher EventPublisher, clock Clock, logger *log.Logger, tenantID string) (*StatusService, error) {
	if bills == nil {
		return nil, errors.New("status service: nil bill repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StatusService{bills: bills, publisher: publisher, clock: clock, logger: logger, tenantID: tenantID}, nil
}

// Get returns a bill after a tenant check.
func (s *StatusService) Get(ctx context.Context, id string) (*billing.UtilityBill, error) {
	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billing.ErrBillNotFound
	}
	if err := s.checkTenant(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// List returns bills for a park, optionally bounded to a period.
func (s *StatusService) List(ctx context.Context, parkID string, period *billing.BillingPeriod) ([]*billing.UtilityBill, error) {
	if parkID == "" {
		return nil, billing.ErrEmptyParkID
	}
	bills, err := s.bills.ListByPark(ctx, parkID, period)
	if err != nil {
		return nil, err
	}
	tenantID := s.effectiveTenant(ctx)
	if tenantID == "" {
		return bills, nil
	}
	filtered := bills[:0]
	for _, bill := range bills {
		if bill.TenantID == "" || bill.TenantID == tenantID {
			filtered = append(filtered, bill)
		}
	}
	return filtered, nil
}

// MarkSent transitions a pending bill to sent.
func (s *StatusService) MarkSent(ctx context.Context, id string) (*billing.UtilityBill, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if err := bill.MarkSent(now); err != nil {
		return nil, err
	}
	if err := s.bills.UpdateStatus(ctx, bill); err != nil {
		return nil, err
	}
	metrics.IncBillTransition(string(billing.BillStatusSent))
	s.publish(ctx, BillSent{
		BillID:     bill.ID,
		TenantID:   bill.TenantID,
		ParkID:     bill.ParkID,
		LotID:      bill.LotID,
		OccurredAt: now,
	})
	return bill, nil
}

// MarkPaid records a confirmed payment. Late payment of an overdue bill is
// allowed.
func (s *StatusService) MarkPaid(ctx context.Context, id string) (*billing.UtilityBill, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if err := bill.MarkPaid(now); err != nil {
		return nil, err
	}
	if err := s.bills.UpdateStatus(ctx, bill); err != nil {
		return nil, err
	}
	metrics.IncBillTransition(string(billing.BillStatusPaid))
	s.publish(ctx, BillPaid{
		BillID:     bill.ID,
		TenantID:   bill.TenantID,
		ParkID:     bill.ParkID,
		LotID:      bill.LotID,
		Amount:     bill.TotalAmount(),
		OccurredAt: now,
	})
	return bill, nil
}

// Void cancels a bill that has not been paid, recording the reason.
func (s *StatusService) Void(ctx context.Context, id, reason string) (*billing.UtilityBill, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if err := bill.Void(reason, now); err != nil {
		return nil, err
	}
	if err := s.bills.UpdateStatus(ctx, bill); err != nil {
		return nil, err
	}
	metrics.IncBillTransition(string(billing.BillStatusVoided))
	s.publish(ctx, BillVoided{
		BillID:     bill.ID,
		TenantID:   bill.TenantID,
		ParkID:     bill.ParkID,
		LotID:      bill.LotID,
		Reason:     reason,
		OccurredAt: now,
	})
	return bill, nil
}

// SweepOverdue flags unpaid bills past their due date. It is triggered by an
// operator or an external scheduler, never by an in-process timer.
func (s *StatusService) SweepOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	due, err := s.bills.ListDueBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, bill := range due {
		if err := bill.MarkOverdue(now); err != nil {
			s.logger.Printf("status service: overdue sweep skip %s: %v", bill.ID, err)
			continue
		}
		if err := s.bills.UpdateStatus(ctx, bill); err != nil {
			s.logger.Printf("status service: overdue sweep update %s: %v", bill.ID, err)
			continue
		}
		flagged++
		metrics.IncBillTransition(string(billing.BillStatusOverdue))
		s.publish(ctx, BillOverdue{
			BillID:     bill.ID,
			TenantID:   bill.TenantID,
			ParkID:     bill.ParkID,
			LotID:      bill.LotID,
			DueDate:    bill.DueDate,
			OccurredAt: now,
		})
	}
	return flagged, nil
}

func (s *StatusService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Printf("status service: publish %T: %v", event, err)
	}
}

func (s *StatusService) effectiveTenant(ctx context.Context) string {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		tenantID = s.tenantID
	}
	return tenantID
}

func (s *StatusService) checkTenant(ctx context.Context, bill *billing.UtilityBill) error {
	tenantID := s.effectiveTenant(ctx)
	if tenantID != "" && bill.TenantID != "" && bill.TenantID != tenantID {
		return auth.ErrTenantMismatch
	}
	return nil
}
