package usage

import (
	"context"
	"errors"

	"mhp-cloud/internal/billing/application"
	billing "mhp-cloud/internal/billing/domain"
	metering "mhp-cloud/internal/metering/domain"
)

// Provider derives charge calculation inputs from captured meter readings
// and recorded park invoices.
type Provider struct {
	readings metering.ReadingRepository
	invoices billing.ParkInvoiceRepository
}

// NewProvider constructs a usage provider.
func NewProvider(readings metering.ReadingRepository, invoices billing.ParkInvoiceRepository) (*Provider, error) {
	if readings == nil {
		return nil, errors.New("usage provider: nil reading repository")
	}
	if invoices == nil {
		return nil, errors.New("usage provider: nil invoice repository")
	}
	return &Provider{readings: readings, invoices: invoices}, nil
}

// MeterUsage pairs the readings bracketing the period for the lot's meter.
// The baseline is the newest reading at or before the period start; a lot
// metered for the first time starts from zero. Returns nil when the period
// contains no reading at all.
func (p *Provider) MeterUsage(ctx context.Context, lotID string, utilityType billing.UtilityType, period billing.BillingPeriod) (*billing.MeterUsage, error) {
	current, err := p.readings.LatestForLotAtOrBefore(ctx, lotID, string(utilityType), period.End)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.RecordedAt.After(period.Start) {
		return nil, nil
	}

	previous, err := p.readings.LatestForLotAtOrBefore(ctx, lotID, string(utilityType), period.Start)
	if err != nil {
		return nil, err
	}

	reset, err := p.readings.ResetBetween(ctx, current.MeterID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	var previousValue float64
	if previous != nil {
		previousValue = previous.Value
		if previous.MeterID != current.MeterID {
			// Meter was replaced between readings.
			reset = true
			previousValue = 0
		}
	}

	return &billing.MeterUsage{
		MeterID:         current.MeterID,
		PreviousReading: previousValue,
		CurrentReading:  current.Value,
		Reset:           reset,
	}, nil
}

// ParkTotals returns the master-metered invoice totals for the park, or nil
// when no invoice was recorded for the period.
func (p *Provider) ParkTotals(ctx context.Context, parkID string, utilityType billing.UtilityType, period billing.BillingPeriod) (*application.ParkTotals, error) {
	invoice, err := p.invoices.FindByParkPeriod(ctx, parkID, utilityType, period)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, nil
	}
	return &application.ParkTotals{
		TotalUsage: invoice.TotalUsage,
		TotalCost:  invoice.TotalCost,
	}, nil
}
