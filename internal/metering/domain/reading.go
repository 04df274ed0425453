package metering

import (
	"context"
	"errors"
	"time"
)

// Capture sources normalize to the same reading shape before reaching the
// billing engine.
const (
	SourceManual = "manual"
	SourcePhoto  = "photo"
	SourceIoT    = "iot"
)

// MeterReading is an immutable, timestamped observation of a meter.
// Readings are append-only: superseded readings are retained for audit,
// never mutated or deleted. Reset marks an explicit meter rollover or
// replacement recorded by the capture collaborator.
type MeterReading struct {
	ID          string
	TenantID    string
	MeterID     string
	LotID       string
	UtilityType string
	Value       float64
	Reset       bool
	Source      string
	RecordedAt  time.Time
	CreatedAt   time.Time
}

// Validate checks reading invariants.
func (m MeterReading) Validate() error {
	if m.MeterID == "" {
		return ErrEmptyMeterID
	}
	if m.LotID == "" {
		return errors.New("meter reading: empty lot id")
	}
	if m.UtilityType == "" {
		return errors.New("meter reading: empty utility type")
	}
	if m.Value < 0 {
		return ErrNegativeValue
	}
	if m.RecordedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	switch m.Source {
	case SourceManual, SourcePhoto, SourceIoT:
	default:
		return errors.New("meter reading: unknown source")
	}
	return nil
}

// ReadingRepository persists meter readings.
type ReadingRepository interface {
	// Insert appends readings; existing readings are never updated.
	Insert(ctx context.Context, readings []MeterReading) error
	// LatestAtOrBefore returns the newest reading for the meter recorded at
	// or before the given time, or nil when none exists.
	LatestAtOrBefore(ctx context.Context, meterID string, at time.Time) (*MeterReading, error)
	// LatestForLotAtOrBefore is the lot-scoped variant used by billing:
	// the newest reading for the lot's meter of the given utility type.
	LatestForLotAtOrBefore(ctx context.Context, lotID, utilityType string, at time.Time) (*MeterReading, error)
	// ResetBetween reports whether any reading between the given times
	// carries the reset flag.
	ResetBetween(ctx context.Context, meterID string, from, to time.Time) (bool, error)
}
