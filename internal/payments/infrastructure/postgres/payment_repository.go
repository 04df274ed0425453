package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	payments "mhp-cloud/internal/payments/domain"
)

// PaymentRepository persists payments in postgres.
type PaymentRepository struct {
	db    *sql.DB
	table string
}

// Option configures the repository.
type Option func(*PaymentRepository)

// WithPaymentsTable overrides the payments table name.
func WithPaymentsTable(table string) Option {
	return func(r *PaymentRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository(db *sql.DB, opts ...Option) *PaymentRepository {
	r := &PaymentRepository{db: db, table: "payments"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save inserts a payment. The reference column carries a unique constraint
// so processor replays surface as ErrDuplicateReference.
func (r *PaymentRepository) Save(ctx context.Context, payment *payments.Payment) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	if err := payment.Validate(); err != nil {
		return err
	}
	createdAt := payment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO `+r.table+` (
	id, tenant_id, bill_id, amount, method, reference, received_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (reference) DO NOTHING`,
		payment.ID, payment.TenantID, payment.BillID, payment.Amount,
		payment.Method, payment.Reference, payment.ReceivedAt, createdAt)
	return err
}

// FindByReference returns the payment for a processor reference, or nil.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*payments.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, bill_id, amount, method, reference, received_at, created_at
FROM `+r.table+`
WHERE reference = $1
LIMIT 1`, reference)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

// ListByBill returns payments for a bill ordered by receive time.
func (r *PaymentRepository) ListByBill(ctx context.Context, billID string) ([]*payments.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, bill_id, amount, method, reference, received_at, created_at
FROM `+r.table+`
WHERE bill_id = $1
ORDER BY received_at ASC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*payments.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, payment)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*payments.Payment, error) {
	var payment payments.Payment
	err := row.Scan(
		&payment.ID,
		&payment.TenantID,
		&payment.BillID,
		&payment.Amount,
		&payment.Method,
		&payment.Reference,
		&payment.ReceivedAt,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
