package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "mhp-cloud/internal/masterdata/domain"
)

const defaultParksTable = "parks"

// ParkRepository is a Postgres implementation for parks.
type ParkRepository struct {
	db    *sql.DB
	table string
}

// NewParkRepository constructs a repository.
func NewParkRepository(db *sql.DB, opts ...ParkOption) *ParkRepository {
	repo := &ParkRepository{db: db, table: defaultParksTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ParkOption configures the repository.
type ParkOption func(*ParkRepository)

// WithParkTable overrides the default table name.
func WithParkTable(table string) ParkOption {
	return func(repo *ParkRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a park by id.
func (r *ParkRepository) Get(ctx context.Context, id string) (*masterdata.Park, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("park repo: nil db")
	}
	if id == "" {
		return nil, errors.New("park repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, name, timezone, region, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var park masterdata.Park
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&park.ID,
		&park.TenantID,
		&park.Name,
		&park.Timezone,
		&park.Region,
		&park.CreatedAt,
		&park.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	park.CreatedAt = park.CreatedAt.UTC()
	park.UpdatedAt = park.UpdatedAt.UTC()
	return &park, nil
}

// Save upserts a park.
func (r *ParkRepository) Save(ctx context.Context, park *masterdata.Park) error {
	if r == nil || r.db == nil {
		return errors.New("park repo: nil db")
	}
	if park == nil {
		return errors.New("park repo: nil park")
	}
	if err := park.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if park.CreatedAt.IsZero() {
		park.CreatedAt = now
	}
	park.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, name, timezone, region, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id)
DO UPDATE SET name = $3, timezone = $4, region = $5, updated_at = $7`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		park.ID, park.TenantID, park.Name, park.Timezone, park.Region, park.CreatedAt, park.UpdatedAt)
	return err
}
