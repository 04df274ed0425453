package billing

import (
	"context"
	"errors"
	"time"
)

// ParkInvoice records the master-metered utility invoice a park received
// from its provider for a period. RUBS allocates its cost across lots.
type ParkInvoice struct {
	ID          string
	TenantID    string
	ParkID      string
	UtilityType UtilityType
	Period      BillingPeriod
	TotalUsage  float64
	TotalCost   float64
	CreatedAt   time.Time
}

// Validate checks invoice invariants.
func (i ParkInvoice) Validate() error {
	if i.ParkID == "" {
		return ErrEmptyParkID
	}
	if _, ok := NormalizeUtilityType(string(i.UtilityType)); !ok {
		return errors.New("billing: unknown invoice utility type")
	}
	if i.Period.IsZero() || !i.Period.Start.Before(i.Period.End) {
		return ErrInvalidPeriod
	}
	if i.TotalUsage < 0 {
		return errors.New("billing: negative invoice usage")
	}
	if i.TotalCost < 0 {
		return errors.New("billing: negative invoice cost")
	}
	return nil
}

// ParkInvoiceRepository persists park invoices.
type ParkInvoiceRepository interface {
	Save(ctx context.Context, invoice *ParkInvoice) error
	// FindByParkPeriod returns the invoice for the park, utility type, and
	// period, or nil when none was recorded.
	FindByParkPeriod(ctx context.Context, parkID string, utilityType UtilityType, period BillingPeriod) (*ParkInvoice, error)
}
