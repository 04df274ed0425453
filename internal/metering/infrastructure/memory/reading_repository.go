package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	metering "mhp-cloud/internal/metering/domain"
)

// ReadingRepository is an in-memory reading store for tests and local runs.
type ReadingRepository struct {
	mu       sync.RWMutex
	readings []metering.MeterReading
}

// NewReadingRepository constructs an empty repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{}
}

// Insert appends readings.
func (r *ReadingRepository) Insert(_ context.Context, readings []metering.MeterReading) error {
	for _, reading := range readings {
		if err := reading.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reading := range readings {
		if reading.CreatedAt.IsZero() {
			reading.CreatedAt = time.Now().UTC()
		}
		r.readings = append(r.readings, reading)
	}
	return nil
}

// LatestAtOrBefore returns the newest reading for the meter at or before
// the given time.
func (r *ReadingRepository) LatestAtOrBefore(_ context.Context, meterID string, at time.Time) (*metering.MeterReading, error) {
	if meterID == "" {
		return nil, metering.ErrEmptyMeterID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest(func(reading metering.MeterReading) bool {
		return reading.MeterID == meterID && !reading.RecordedAt.After(at)
	}), nil
}

// LatestForLotAtOrBefore returns the newest reading for the lot and utility
// type at or before the given time.
func (r *ReadingRepository) LatestForLotAtOrBefore(_ context.Context, lotID, utilityType string, at time.Time) (*metering.MeterReading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest(func(reading metering.MeterReading) bool {
		return reading.LotID == lotID && reading.UtilityType == utilityType && !reading.RecordedAt.After(at)
	}), nil
}

// ResetBetween reports whether any reading in (from, to] carries the reset flag.
func (r *ReadingRepository) ResetBetween(_ context.Context, meterID string, from, to time.Time) (bool, error) {
	if meterID == "" {
		return false, metering.ErrEmptyMeterID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reading := range r.readings {
		if reading.MeterID != meterID || !reading.Reset {
			continue
		}
		if reading.RecordedAt.After(from) && !reading.RecordedAt.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (r *ReadingRepository) latest(match func(metering.MeterReading) bool) *metering.MeterReading {
	candidates := make([]metering.MeterReading, 0, 4)
	for _, reading := range r.readings {
		if match(reading) {
			candidates = append(candidates, reading)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RecordedAt.Equal(candidates[j].RecordedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].RecordedAt.After(candidates[j].RecordedAt)
	})
	newest := candidates[0]
	return &newest
}
