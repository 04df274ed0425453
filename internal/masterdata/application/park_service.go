package application

import (
	"context"
	"errors"
	"time"

	masterdata "mhp-cloud/internal/masterdata/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// ParkService provides park and lot commands.
type ParkService struct {
	parks masterdata.ParkRepository
	lots  masterdata.LotRepository
	clock Clock
}

// NewParkService constructs a park service.
func NewParkService(parks masterdata.ParkRepository, lots masterdata.LotRepository, clock Clock) (*ParkService, error) {
	if parks == nil {
		return nil, errors.New("park service: nil park repository")
	}
	if lots == nil {
		return nil, errors.New("park service: nil lot repository")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &ParkService{parks: parks, lots: lots, clock: clock}, nil
}

// UpsertPark validates and saves a park.
func (s *ParkService) UpsertPark(ctx context.Context, park *masterdata.Park) error {
	if park == nil {
		return masterdata.ErrNilPark
	}
	now := s.clock.Now().UTC()
	if park.CreatedAt.IsZero() {
		park.CreatedAt = now
	}
	park.UpdatedAt = now
	if err := park.Validate(); err != nil {
		return err
	}
	return s.parks.Save(ctx, park)
}

// UpsertLot validates and saves a lot. The park must exist.
func (s *ParkService) UpsertLot(ctx context.Context, lot *masterdata.Lot) error {
	if lot == nil {
		return masterdata.ErrNilLot
	}
	park, err := s.parks.Get(ctx, lot.ParkID)
	if err != nil {
		return err
	}
	if park == nil {
		return masterdata.ErrParkNotFound
	}
	if lot.TenantID == "" {
		lot.TenantID = park.TenantID
	}
	if lot.Status == "" {
		lot.Status = masterdata.LotStatusActive
	}
	now := s.clock.Now().UTC()
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = now
	}
	lot.UpdatedAt = now
	if err := lot.Validate(); err != nil {
		return err
	}
	return s.lots.Save(ctx, lot)
}

// ArchiveLot takes a lot out of service. Archived lots keep their bills
// but stop appearing in billing runs and RUBS allocation.
func (s *ParkService) ArchiveLot(ctx context.Context, lotID string) error {
	if lotID == "" {
		return errors.New("park service: empty lot id")
	}
	return s.lots.Archive(ctx, lotID, s.clock.Now().UTC())
}

// ListLots returns the active lots of a park.
func (s *ParkService) ListLots(ctx context.Context, parkID string) ([]masterdata.Lot, error) {
	if parkID == "" {
		return nil, errors.New("park service: empty park id")
	}
	return s.lots.ListActiveByPark(ctx, parkID)
}
