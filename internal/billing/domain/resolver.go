package billing

import (
	"context"
	"errors"
	"time"
)

// Resolver looks up the applicable rate table for a park and utility type.
// Resolution is a pure lookup with no side effects: identical inputs yield
// the identical table version.
type Resolver struct {
	store RateTableStore
}

// NewResolver constructs a resolver.
func NewResolver(store RateTableStore) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("rate resolver: nil store")
	}
	return &Resolver{store: store}, nil
}

// Resolve returns the table version effective at asOf. It fails with
// ConfigurationError when no table is configured; the caller must then skip
// billing that utility for the lot, never zero it silently.
func (r *Resolver) Resolve(ctx context.Context, parkID string, utilityType UtilityType, asOf time.Time) (*RateTable, error) {
	if parkID == "" {
		return nil, ErrEmptyParkID
	}
	if _, ok := NormalizeUtilityType(string(utilityType)); !ok {
		return nil, &ConfigurationError{ParkID: parkID, UtilityType: utilityType, Reason: "unknown utility type"}
	}
	table, err := r.store.FindEffective(ctx, parkID, utilityType, asOf.UTC())
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, &ConfigurationError{ParkID: parkID, UtilityType: utilityType, Reason: "no rate table configured"}
	}
	if err := table.Validate(); err != nil {
		return nil, &ConfigurationError{ParkID: parkID, UtilityType: utilityType, Reason: err.Error()}
	}
	return table, nil
}

// ConfiguredUtilities lists the utility types billable for the park at asOf.
func (r *Resolver) ConfiguredUtilities(ctx context.Context, parkID string, asOf time.Time) ([]UtilityType, error) {
	if parkID == "" {
		return nil, ErrEmptyParkID
	}
	return r.store.ConfiguredUtilityTypes(ctx, parkID, asOf.UTC())
}
