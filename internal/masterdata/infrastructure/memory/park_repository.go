package memory

import (
	"context"
	"sync"

	masterdata "mhp-cloud/internal/masterdata/domain"
)

// ParkRepository is an in-memory park store for tests and local runs.
type ParkRepository struct {
	mu    sync.RWMutex
	parks map[string]masterdata.Park
}

// NewParkRepository constructs an empty repository.
func NewParkRepository() *ParkRepository {
	return &ParkRepository{parks: make(map[string]masterdata.Park)}
}

// Get returns a park by id, or nil when absent.
func (r *ParkRepository) Get(_ context.Context, id string) (*masterdata.Park, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	park, ok := r.parks[id]
	if !ok {
		return nil, nil
	}
	return &park, nil
}

// Save inserts or replaces a park.
func (r *ParkRepository) Save(_ context.Context, park *masterdata.Park) error {
	if park == nil {
		return masterdata.ErrNilPark
	}
	if err := park.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parks[park.ID] = *park
	return nil
}
