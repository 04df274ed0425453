package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "mhp-cloud/internal/masterdata/domain"
)

const defaultLotsTable = "lots"

// LotRepository is a Postgres implementation for lots.
type LotRepository struct {
	db    *sql.DB
	table string
}

// NewLotRepository constructs a repository.
func NewLotRepository(db *sql.DB, opts ...LotOption) *LotRepository {
	repo := &LotRepository{db: db, table: defaultLotsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LotOption configures the repository.
type LotOption func(*LotRepository)

// WithLotTable overrides the default table name.
func WithLotTable(table string) LotOption {
	return func(repo *LotRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a lot by id.
func (r *LotRepository) Get(ctx context.Context, id string) (*masterdata.Lot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("lot repo: nil db")
	}
	if id == "" {
		return nil, errors.New("lot repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT id, park_id, tenant_id, lot_number, occupants, square_footage, active_tenancy, status,
	created_at, updated_at, archived_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	return scanLot(r.db.QueryRowContext(ctx, query, id))
}

// ListActiveByPark returns billable lots ordered by lot number.
func (r *LotRepository) ListActiveByPark(ctx context.Context, parkID string) ([]masterdata.Lot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("lot repo: nil db")
	}
	if parkID == "" {
		return nil, errors.New("lot repo: empty park id")
	}
	query := fmt.Sprintf(`
SELECT id, park_id, tenant_id, lot_number, occupants, square_footage, active_tenancy, status,
	created_at, updated_at, archived_at
FROM %s
WHERE park_id = $1 AND status = $2
ORDER BY lot_number ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, parkID, masterdata.LotStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *lot)
	}
	return result, rows.Err()
}

// Save upserts a lot.
func (r *LotRepository) Save(ctx context.Context, lot *masterdata.Lot) error {
	if r == nil || r.db == nil {
		return errors.New("lot repo: nil db")
	}
	if lot == nil {
		return errors.New("lot repo: nil lot")
	}
	if lot.Status == "" {
		lot.Status = masterdata.LotStatusActive
	}
	if err := lot.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = now
	}
	lot.UpdatedAt = now

	var archivedAt sql.NullTime
	if !lot.ArchivedAt.IsZero() {
		archivedAt = sql.NullTime{Time: lot.ArchivedAt, Valid: true}
	}
	var tenancy sql.NullString
	if lot.ActiveTenancy != "" {
		tenancy = sql.NullString{String: lot.ActiveTenancy, Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, park_id, tenant_id, lot_number, occupants, square_footage, active_tenancy, status,
	created_at, updated_at, archived_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id)
DO UPDATE SET lot_number = $4, occupants = $5, square_footage = $6, active_tenancy = $7,
	status = $8, updated_at = $10, archived_at = $11`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		lot.ID, lot.ParkID, lot.TenantID, lot.LotNumber, lot.Occupants, lot.SquareFootage,
		tenancy, lot.Status, lot.CreatedAt, lot.UpdatedAt, archivedAt)
	return err
}

// Archive marks a lot out of service.
func (r *LotRepository) Archive(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("lot repo: nil db")
	}
	if id == "" {
		return errors.New("lot repo: empty id")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, archived_at = $3, active_tenancy = NULL, updated_at = $3
WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id, masterdata.LotStatusArchived, at.UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("lot repo: lot not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(row rowScanner) (*masterdata.Lot, error) {
	var lot masterdata.Lot
	var tenancy sql.NullString
	var archivedAt sql.NullTime
	err := row.Scan(
		&lot.ID,
		&lot.ParkID,
		&lot.TenantID,
		&lot.LotNumber,
		&lot.Occupants,
		&lot.SquareFootage,
		&tenancy,
		&lot.Status,
		&lot.CreatedAt,
		&lot.UpdatedAt,
		&archivedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if tenancy.Valid {
		lot.ActiveTenancy = tenancy.String
	}
	if archivedAt.Valid {
		lot.ArchivedAt = archivedAt.Time.UTC()
	}
	lot.CreatedAt = lot.CreatedAt.UTC()
	lot.UpdatedAt = lot.UpdatedAt.UTC()
	return &lot, nil
}
