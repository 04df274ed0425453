package billing

import (
	"context"
	"time"
)

// BillRepository persists utility bills.
type BillRepository interface {
	// FindActiveByLotAndPeriod returns the non-voided bill for the lot and
	// period, or nil when none exists.
	FindActiveByLotAndPeriod(ctx context.Context, lotID string, period BillingPeriod) (*UtilityBill, error)
	// NextVersion returns the next bill version for the lot and period,
	// counting voided bills.
	NextVersion(ctx context.Context, lotID string, period BillingPeriod) (int, error)
	// Create inserts a bill and its charges atomically.
	Create(ctx context.Context, bill *UtilityBill) error
	// GetByID fetches a bill with its charges, or nil when absent.
	GetByID(ctx context.Context, id string) (*UtilityBill, error)
	// UpdateStatus persists a status transition already applied to the bill.
	UpdateStatus(ctx context.Context, bill *UtilityBill) error
	// ListByPark lists bills for a park, optionally bounded to a period.
	ListByPark(ctx context.Context, parkID string, period *BillingPeriod) ([]*UtilityBill, error)
	// ListDueBefore lists pending or sent bills whose due date passed.
	ListDueBefore(ctx context.Context, asOf time.Time) ([]*UtilityBill, error)
}

// RateTableStore is the resolver's lookup backend.
type RateTableStore interface {
	// FindEffective returns the table version effective at asOf for the
	// park and utility type, or nil when none is configured.
	FindEffective(ctx context.Context, parkID string, utilityType UtilityType, asOf time.Time) (*RateTable, error)
	// ConfiguredUtilityTypes lists utility types with at least one table
	// version effective at asOf for the park.
	ConfiguredUtilityTypes(ctx context.Context, parkID string, asOf time.Time) ([]UtilityType, error)
}
