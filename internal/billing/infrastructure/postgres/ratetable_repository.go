package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	billing "mhp-cloud/internal/billing/domain"
)

// RateTableRepository persists immutable rate table versions. Tiers are
// stored as a jsonb document alongside the scalar pricing fields.
type RateTableRepository struct {
	db *sql.DB
}

// NewRateTableRepository constructs a repository.
func NewRateTableRepository(db *sql.DB) *RateTableRepository {
	return &RateTableRepository{db: db}
}

// Save inserts a new table version. Versions are never updated in place.
func (r *RateTableRepository) Save(ctx context.Context, table *billing.RateTable) error {
	if r == nil || r.db == nil {
		return errors.New("rate table repo: nil db")
	}
	if err := table.Validate(); err != nil {
		return err
	}
	tiers, err := json.Marshal(table.Tiers)
	if err != nil {
		return err
	}
	createdAt := table.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO rate_tables (
	id, tenant_id, park_id, utility_type, method, tiers, base_rate,
	flat_amount, basis, effective_from, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		table.ID, table.TenantID, table.ParkID, table.UtilityType, table.Method,
		tiers, table.BaseRate, table.FlatAmount, table.Basis, table.EffectiveFrom, createdAt)
	return err
}

// FindEffective returns the table version effective at asOf for the park and
// utility type, or nil when none is configured.
func (r *RateTableRepository) FindEffective(ctx context.Context, parkID string, utilityType billing.UtilityType, asOf time.Time) (*billing.RateTable, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate table repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, park_id, utility_type, method, tiers, base_rate,
	flat_amount, basis, effective_from, created_at
FROM rate_tables
WHERE park_id = $1 AND utility_type = $2 AND effective_from <= $3
ORDER BY effective_from DESC, created_at DESC
LIMIT 1`, parkID, utilityType, asOf)
	return scanRateTable(row)
}

// ConfiguredUtilityTypes lists utility types with at least one table version
// effective at asOf for the park.
func (r *RateTableRepository) ConfiguredUtilityTypes(ctx context.Context, parkID string, asOf time.Time) ([]billing.UtilityType, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate table repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT utility_type
FROM rate_tables
WHERE park_id = $1 AND effective_from <= $2
ORDER BY utility_type ASC`, parkID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.UtilityType
	for rows.Next() {
		var utilityType string
		if err := rows.Scan(&utilityType); err != nil {
			return nil, err
		}
		result = append(result, billing.UtilityType(utilityType))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRateTable(row rowScanner) (*billing.RateTable, error) {
	var table billing.RateTable
	var tiers []byte
	var basis sql.NullString
	err := row.Scan(
		&table.ID,
		&table.TenantID,
		&table.ParkID,
		&table.UtilityType,
		&table.Method,
		&tiers,
		&table.BaseRate,
		&table.FlatAmount,
		&basis,
		&table.EffectiveFrom,
		&table.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &table.Tiers); err != nil {
			return nil, err
		}
	}
	if basis.Valid {
		table.Basis = billing.AllocationBasis(basis.String)
	}
	table.EffectiveFrom = table.EffectiveFrom.UTC()
	table.CreatedAt = table.CreatedAt.UTC()
	return &table, nil
}
