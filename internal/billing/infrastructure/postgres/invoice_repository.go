package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "mhp-cloud/internal/billing/domain"
)

// ParkInvoiceRepository persists master-metered park invoices.
type ParkInvoiceRepository struct {
	db *sql.DB
}

// NewParkInvoiceRepository constructs a repository.
func NewParkInvoiceRepository(db *sql.DB) *ParkInvoiceRepository {
	return &ParkInvoiceRepository{db: db}
}

// Save inserts or replaces the invoice for the park, utility, and period.
func (r *ParkInvoiceRepository) Save(ctx context.Context, invoice *billing.ParkInvoice) error {
	if r == nil || r.db == nil {
		return errors.New("park invoice repo: nil db")
	}
	if invoice == nil {
		return errors.New("park invoice repo: nil invoice")
	}
	if err := invoice.Validate(); err != nil {
		return err
	}
	createdAt := invoice.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO park_invoices (
	id, tenant_id, park_id, utility_type, period_start, period_end,
	total_usage, total_cost, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (park_id, utility_type, period_start, period_end)
DO UPDATE SET
	total_usage = EXCLUDED.total_usage,
	total_cost = EXCLUDED.total_cost`,
		invoice.ID, invoice.TenantID, invoice.ParkID, invoice.UtilityType,
		invoice.Period.Start, invoice.Period.End, invoice.TotalUsage, invoice.TotalCost, createdAt)
	return err
}

// FindByParkPeriod returns the invoice for the park, utility, and period.
func (r *ParkInvoiceRepository) FindByParkPeriod(ctx context.Context, parkID string, utilityType billing.UtilityType, period billing.BillingPeriod) (*billing.ParkInvoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("park invoice repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, park_id, utility_type, period_start, period_end,
	total_usage, total_cost, created_at
FROM park_invoices
WHERE park_id = $1 AND utility_type = $2 AND period_start = $3 AND period_end = $4
LIMIT 1`, parkID, utilityType, period.Start, period.End)

	var invoice billing.ParkInvoice
	err := row.Scan(
		&invoice.ID,
		&invoice.TenantID,
		&invoice.ParkID,
		&invoice.UtilityType,
		&invoice.Period.Start,
		&invoice.Period.End,
		&invoice.TotalUsage,
		&invoice.TotalCost,
		&invoice.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	invoice.Period.Start = invoice.Period.Start.UTC()
	invoice.Period.End = invoice.Period.End.UTC()
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	return &invoice, nil
}
