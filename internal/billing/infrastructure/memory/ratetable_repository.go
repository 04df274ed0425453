package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "mhp-cloud/internal/billing/domain"
)

// RateTableRepository is an in-memory rate table store for tests and demos.
type RateTableRepository struct {
	mu     sync.RWMutex
	tables []*billing.RateTable
}

// NewRateTableRepository constructs a repository.
func NewRateTableRepository() *RateTableRepository {
	return &RateTableRepository{}
}

// Put adds a table version.
func (r *RateTableRepository) Put(table *billing.RateTable) error {
	if table == nil {
		return billing.ErrInvalidRateTable
	}
	if err := table.Validate(); err != nil {
		return err
	}
	copy := *table
	r.mu.Lock()
	r.tables = append(r.tables, &copy)
	r.mu.Unlock()
	return nil
}

// Save adds a table version.
func (r *RateTableRepository) Save(ctx context.Context, table *billing.RateTable) error {
	_ = ctx
	return r.Put(table)
}

// FindEffective returns the most recent version at or before asOf.
func (r *RateTableRepository) FindEffective(ctx context.Context, parkID string, utilityType billing.UtilityType, asOf time.Time) (*billing.RateTable, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *billing.RateTable
	for _, table := range r.tables {
		if table.ParkID != parkID || table.UtilityType != utilityType {
			continue
		}
		if table.EffectiveFrom.After(asOf) {
			continue
		}
		if best == nil || table.EffectiveFrom.After(best.EffectiveFrom) {
			best = table
		}
	}
	if best == nil {
		return nil, nil
	}
	copy := *best
	return &copy, nil
}

// ConfiguredUtilityTypes lists utility types with an effective table.
func (r *RateTableRepository) ConfiguredUtilityTypes(ctx context.Context, parkID string, asOf time.Time) ([]billing.UtilityType, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[billing.UtilityType]struct{})
	for _, table := range r.tables {
		if table.ParkID != parkID || table.EffectiveFrom.After(asOf) {
			continue
		}
		seen[table.UtilityType] = struct{}{}
	}
	result := make([]billing.UtilityType, 0, len(seen))
	for utilityType := range seen {
		result = append(result, utilityType)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}
