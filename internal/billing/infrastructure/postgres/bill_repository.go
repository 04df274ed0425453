package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "mhp-cloud/internal/billing/domain"
)

// BillRepository persists utility bills and their charges.
type BillRepository struct {
	db *sql.DB
}

// NewBillRepository constructs a repository.
func NewBillRepository(db *sql.DB) *BillRepository {
	return &BillRepository{db: db}
}

// FindActiveByLotAndPeriod returns the non-voided bill for the lot and period.
func (r *BillRepository) FindActiveByLotAndPeriod(ctx context.Context, lotID string, period billing.BillingPeriod) (*billing.UtilityBill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, park_id, lot_id, period_start, period_end, status, due_date,
	void_reason, created_at, updated_at, sent_at, paid_at, voided_at
FROM utility_bills
WHERE lot_id = $1 AND period_start = $2 AND period_end = $3 AND status <> 'voided'
LIMIT 1`, lotID, period.Start, period.End)
	bill, err := scanBill(row)
	if err != nil || bill == nil {
		return bill, err
	}
	if err := r.loadCharges(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// NextVersion returns the next bill version for the lot and period, counting
// voided bills.
func (r *BillRepository) NextVersion(ctx context.Context, lotID string, period billing.BillingPeriod) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("bill repo: nil db")
	}
	var count int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM utility_bills
WHERE lot_id = $1 AND period_start = $2 AND period_end = $3`, lotID, period.Start, period.End).Scan(&count)
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

// Create inserts a bill and its charges atomically.
func (r *BillRepository) Create(ctx context.Context, bill *billing.UtilityBill) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	if bill == nil {
		return billing.ErrNilBill
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO utility_bills (
	id, tenant_id, park_id, lot_id, period_start, period_end, status, due_date,
	void_reason, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`,
		bill.ID, bill.TenantID, bill.ParkID, bill.LotID, bill.Period.Start, bill.Period.End,
		bill.Status, bill.DueDate, bill.VoidReason, bill.CreatedAt, bill.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for position, charge := range bill.Charges {
		_, err := tx.ExecContext(ctx, `
INSERT INTO utility_bill_charges (
	bill_id, position, utility_type, method, usage, rate, amount, breakdown
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			bill.ID, position, charge.UtilityType, charge.Method,
			nullFloat(charge.Usage), charge.Rate, charge.Amount, []byte(charge.Breakdown))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetByID fetches a bill with its charges.
func (r *BillRepository) GetByID(ctx context.Context, id string) (*billing.UtilityBill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, park_id, lot_id, period_start, period_end, status, due_date,
	void_reason, created_at, updated_at, sent_at, paid_at, voided_at
FROM utility_bills
WHERE id = $1
LIMIT 1`, id)
	bill, err := scanBill(row)
	if err != nil || bill == nil {
		return bill, err
	}
	if err := r.loadCharges(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// UpdateStatus persists a status transition already applied to the bill.
func (r *BillRepository) UpdateStatus(ctx context.Context, bill *billing.UtilityBill) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	if bill == nil {
		return billing.ErrNilBill
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE utility_bills
SET status = $1, void_reason = $2, updated_at = $3,
	sent_at = $4, paid_at = $5, voided_at = $6
WHERE id = $7`,
		bill.Status, bill.VoidReason, bill.UpdatedAt,
		nullTime(bill.SentAt), nullTime(bill.PaidAt), nullTime(bill.VoidedAt), bill.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrBillNotFound
	}
	return nil
}

// ListByPark lists bills for a park, newest first, optionally bounded to a
// period.
func (r *BillRepository) ListByPark(ctx context.Context, parkID string, period *billing.BillingPeriod) ([]*billing.UtilityBill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	query := `
SELECT id, tenant_id, park_id, lot_id, period_start, period_end, status, due_date,
	void_reason, created_at, updated_at, sent_at, paid_at, voided_at
FROM utility_bills
WHERE park_id = $1`
	args := []any{parkID}
	if period != nil {
		query += ` AND period_start = $2 AND period_end = $3`
		args = append(args, period.Start, period.End)
	}
	query += `
ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectBills(ctx, rows)
}

// ListDueBefore lists pending or sent bills whose due date passed.
func (r *BillRepository) ListDueBefore(ctx context.Context, asOf time.Time) ([]*billing.UtilityBill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, park_id, lot_id, period_start, period_end, status, due_date,
	void_reason, created_at, updated_at, sent_at, paid_at, voided_at
FROM utility_bills
WHERE status IN ('pending','sent') AND due_date < $1
ORDER BY due_date ASC`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectBills(ctx, rows)
}

func (r *BillRepository) collectBills(ctx context.Context, rows *sql.Rows) ([]*billing.UtilityBill, error) {
	var result []*billing.UtilityBill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		if bill != nil {
			result = append(result, bill)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, bill := range result {
		if err := r.loadCharges(ctx, bill); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *BillRepository) loadCharges(ctx context.Context, bill *billing.UtilityBill) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT utility_type, method, usage, rate, amount, breakdown
FROM utility_bill_charges
WHERE bill_id = $1
ORDER BY position ASC`, bill.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var charges []billing.UtilityCharge
	for rows.Next() {
		var charge billing.UtilityCharge
		var usage sql.NullFloat64
		var breakdown []byte
		if err := rows.Scan(&charge.UtilityType, &charge.Method, &usage, &charge.Rate, &charge.Amount, &breakdown); err != nil {
			return err
		}
		if usage.Valid {
			v := usage.Float64
			charge.Usage = &v
		}
		charge.Breakdown = breakdown
		charges = append(charges, charge)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	bill.Charges = charges
	return nil
}

func scanBill(row rowScanner) (*billing.UtilityBill, error) {
	var bill billing.UtilityBill
	var voidReason sql.NullString
	var sentAt, paidAt, voidedAt sql.NullTime
	err := row.Scan(
		&bill.ID,
		&bill.TenantID,
		&bill.ParkID,
		&bill.LotID,
		&bill.Period.Start,
		&bill.Period.End,
		&bill.Status,
		&bill.DueDate,
		&voidReason,
		&bill.CreatedAt,
		&bill.UpdatedAt,
		&sentAt,
		&paidAt,
		&voidedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if voidReason.Valid {
		bill.VoidReason = voidReason.String
	}
	if sentAt.Valid {
		bill.SentAt = sentAt.Time.UTC()
	}
	if paidAt.Valid {
		bill.PaidAt = paidAt.Time.UTC()
	}
	if voidedAt.Valid {
		bill.VoidedAt = voidedAt.Time.UTC()
	}
	bill.Period.Start = bill.Period.Start.UTC()
	bill.Period.End = bill.Period.End.UTC()
	bill.DueDate = bill.DueDate.UTC()
	bill.CreatedAt = bill.CreatedAt.UTC()
	bill.UpdatedAt = bill.UpdatedAt.UTC()
	return &bill, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
