package interfaces

import (
	"context"
	"errors"
	"log"

	billingapp "mhp-cloud/internal/billing/application"
	billing "mhp-cloud/internal/billing/domain"
	"mhp-cloud/internal/notify"
	"mhp-cloud/internal/observability/metrics"
)

// BillNotifier delivers a bill notification to the resident.
type BillNotifier interface {
	NotifyBill(ctx context.Context, event string, bill *billing.UtilityBill) error
}

// BillGeneratedConsumer delivers a notification for each generated bill and
// marks the bill sent once delivery succeeds. Delivery failures leave the
// bill pending so the event can be retried.
type BillGeneratedConsumer struct {
	status   *billingapp.StatusService
	notifier BillNotifier
	logger   *log.Logger
}

// NewBillGeneratedConsumer constructs a consumer.
func NewBillGeneratedConsumer(status *billingapp.StatusService, notifier BillNotifier, logger *log.Logger) (*BillGeneratedConsumer, error) {
	if status == nil {
		return nil, errors.New("bill consumer: nil status service")
	}
	if notifier == nil {
		return nil, errors.New("bill consumer: nil notifier")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BillGeneratedConsumer{status: status, notifier: notifier, logger: logger}, nil
}

// Consume handles a bill generated event.
func (c *BillGeneratedConsumer) Consume(ctx context.Context, event billingapp.BillGenerated) error {
	bill, err := c.status.Get(ctx, event.BillID)
	if err != nil {
		return err
	}
	if bill.Status != billing.BillStatusPending {
		return nil
	}
	if err := c.notifier.NotifyBill(ctx, notify.EventGenerated, bill); err != nil {
		metrics.IncNotification(metrics.ResultError)
		return err
	}
	metrics.IncNotification(metrics.ResultSuccess)
	if _, err := c.status.MarkSent(ctx, bill.ID); err != nil {
		c.logger.Printf("bill consumer: mark sent %s: %v", bill.ID, err)
		return err
	}
	return nil
}
