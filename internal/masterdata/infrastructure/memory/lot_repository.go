package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	masterdata "mhp-cloud/internal/masterdata/domain"
)

// LotRepository is an in-memory lot store for tests and local runs.
type LotRepository struct {
	mu   sync.RWMutex
	lots map[string]masterdata.Lot
}

// NewLotRepository constructs an empty repository.
func NewLotRepository() *LotRepository {
	return &LotRepository{lots: make(map[string]masterdata.Lot)}
}

// Get returns a lot by id, or nil when absent.
func (r *LotRepository) Get(_ context.Context, id string) (*masterdata.Lot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lot, ok := r.lots[id]
	if !ok {
		return nil, nil
	}
	return &lot, nil
}

// ListActiveByPark returns active lots for a park ordered by lot number.
func (r *LotRepository) ListActiveByPark(_ context.Context, parkID string) ([]masterdata.Lot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []masterdata.Lot
	for _, lot := range r.lots {
		if lot.ParkID == parkID && lot.IsActive() {
			result = append(result, lot)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LotNumber < result[j].LotNumber
	})
	return result, nil
}

// Save inserts or replaces a lot.
func (r *LotRepository) Save(_ context.Context, lot *masterdata.Lot) error {
	if lot == nil {
		return masterdata.ErrNilLot
	}
	if err := lot.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[lot.ID] = *lot
	return nil
}

// Archive marks a lot out of service.
func (r *LotRepository) Archive(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok {
		return masterdata.ErrLotNotFound
	}
	lot.Status = masterdata.LotStatusArchived
	lot.ArchivedAt = at.UTC()
	lot.UpdatedAt = at.UTC()
	r.lots[id] = lot
	return nil
}
