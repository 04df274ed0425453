package masterdata

import (
	"context"
	"errors"
	"time"
)

// Park represents a mobile-home park in masterdata.
type Park struct {
	ID        string
	TenantID  string
	Name      string
	Timezone  string
	Region    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks park invariants.
func (p Park) Validate() error {
	if p.ID == "" {
		return errors.New("park: empty id")
	}
	if p.TenantID == "" {
		return errors.New("park: empty tenant id")
	}
	if p.Name == "" {
		return errors.New("park: empty name")
	}
	if p.Timezone == "" {
		return errors.New("park: empty timezone")
	}
	return nil
}

// ParkRepository manages park persistence.
type ParkRepository interface {
	Get(ctx context.Context, id string) (*Park, error)
	Save(ctx context.Context, park *Park) error
}
