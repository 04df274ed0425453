package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	metering "mhp-cloud/internal/metering/domain"
)

const defaultReadingsTable = "meter_readings"

// ReadingRepository is a Postgres implementation for meter readings.
// Inserts are append-only; readings are never updated or deleted.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB, opts ...ReadingOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReadingOption configures the repository.
type ReadingOption func(*ReadingRepository)

// WithReadingsTable overrides the default table name.
func WithReadingsTable(table string) ReadingOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends readings.
func (r *ReadingRepository) Insert(ctx context.Context, readings []metering.MeterReading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if len(readings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, meter_id, lot_id, utility_type, value, reset, source, recorded_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, r.table)

	for _, reading := range readings {
		if err := reading.Validate(); err != nil {
			_ = tx.Rollback()
			return err
		}
		createdAt := reading.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, query,
			reading.ID, reading.TenantID, reading.MeterID, reading.LotID, reading.UtilityType,
			reading.Value, reading.Reset, reading.Source, reading.RecordedAt.UTC(), createdAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LatestAtOrBefore returns the newest reading at or before the given time.
func (r *ReadingRepository) LatestAtOrBefore(ctx context.Context, meterID string, at time.Time) (*metering.MeterReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if meterID == "" {
		return nil, metering.ErrEmptyMeterID
	}
	query := fmt.Sprintf(`
SELECT id, tenant_id, meter_id, lot_id, utility_type, value, reset, source, recorded_at, created_at
FROM %s
WHERE meter_id = $1 AND recorded_at <= $2
ORDER BY recorded_at DESC, created_at DESC
LIMIT 1`, r.table)

	var reading metering.MeterReading
	err := r.db.QueryRowContext(ctx, query, meterID, at.UTC()).Scan(
		&reading.ID,
		&reading.TenantID,
		&reading.MeterID,
		&reading.LotID,
		&reading.UtilityType,
		&reading.Value,
		&reading.Reset,
		&reading.Source,
		&reading.RecordedAt,
		&reading.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
	reading.CreatedAt = reading.CreatedAt.UTC()
	return &reading, nil
}

// LatestForLotAtOrBefore returns the newest reading for the lot and utility
// type at or before the given time.
func (r *ReadingRepository) LatestForLotAtOrBefore(ctx context.Context, lotID, utilityType string, at time.Time) (*metering.MeterReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, tenant_id, meter_id, lot_id, utility_type, value, reset, source, recorded_at, created_at
FROM %s
WHERE lot_id = $1 AND utility_type = $2 AND recorded_at <= $3
ORDER BY recorded_at DESC, created_at DESC
LIMIT 1`, r.table)

	var reading metering.MeterReading
	err := r.db.QueryRowContext(ctx, query, lotID, utilityType, at.UTC()).Scan(
		&reading.ID,
		&reading.TenantID,
		&reading.MeterID,
		&reading.LotID,
		&reading.UtilityType,
		&reading.Value,
		&reading.Reset,
		&reading.Source,
		&reading.RecordedAt,
		&reading.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
	reading.CreatedAt = reading.CreatedAt.UTC()
	return &reading, nil
}

// ResetBetween reports whether any reading in (from, to] carries the reset flag.
func (r *ReadingRepository) ResetBetween(ctx context.Context, meterID string, from, to time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("reading repo: nil db")
	}
	if meterID == "" {
		return false, metering.ErrEmptyMeterID
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s
	WHERE meter_id = $1 AND reset AND recorded_at > $2 AND recorded_at <= $3
)`, r.table)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, meterID, from.UTC(), to.UTC()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
