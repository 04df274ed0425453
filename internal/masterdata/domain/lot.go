package masterdata

import (
	"context"
	"errors"
	"time"
)

const (
	LotStatusActive   = "active"
	LotStatusArchived = "archived"
)

// Lot is a billable pad/site within a park. Lots are archived when vacated
// or removed from service, never deleted: bills keep referencing the lot by
// its stable identifier after archival.
type Lot struct {
	ID            string
	ParkID        string
	TenantID      string
	LotNumber     string
	Occupants     int
	SquareFootage float64
	ActiveTenancy string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ArchivedAt    time.Time
}

// Validate checks lot invariants.
func (l Lot) Validate() error {
	if l.ID == "" {
		return errors.New("lot: empty id")
	}
	if l.ParkID == "" {
		return errors.New("lot: empty park id")
	}
	if l.TenantID == "" {
		return errors.New("lot: empty tenant id")
	}
	if l.Occupants < 0 {
		return errors.New("lot: negative occupants")
	}
	if l.SquareFootage < 0 {
		return errors.New("lot: negative square footage")
	}
	switch l.Status {
	case LotStatusActive, LotStatusArchived:
	default:
		return errors.New("lot: unknown status")
	}
	return nil
}

// IsActive reports whether the lot is billable.
func (l Lot) IsActive() bool { return l.Status == LotStatusActive }

// LotRepository manages lot persistence.
type LotRepository interface {
	Get(ctx context.Context, id string) (*Lot, error)
	// ListActiveByPark returns the lots eligible for billing and allocation,
	// ordered by lot number.
	ListActiveByPark(ctx context.Context, parkID string) ([]Lot, error)
	Save(ctx context.Context, lot *Lot) error
	// Archive marks a lot out of service, retaining it for historical bills.
	Archive(ctx context.Context, id string, at time.Time) error
}
