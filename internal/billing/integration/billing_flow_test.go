package integration_test

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	billingapp "mhp-cloud/internal/billing/application"
	billing "mhp-cloud/internal/billing/domain"
	billingrepo "mhp-cloud/internal/billing/infrastructure/postgres"
	billingusage "mhp-cloud/internal/billing/infrastructure/usage"
	masterdatarepo "mhp-cloud/internal/masterdata/infrastructure/postgres"
	meteringrepo "mhp-cloud/internal/metering/infrastructure/postgres"
	paymentsapp "mhp-cloud/internal/payments/application"
	paymentsrepo "mhp-cloud/internal/payments/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Closed loop against a live database: seed master data and readings,
// generate a bill, send it and settle it with a payment.
func TestBillingFlow_GenerateSendPay(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyBillingMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	tenantID := "tenant-flow"
	parkID := "park-flow-001"
	lotID := "lot-flow-001"

	cleanup := func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM payments WHERE tenant_id = $1", tenantID)
		_, _ = db.ExecContext(ctx, "DELETE FROM utility_bill_charges WHERE bill_id IN (SELECT id FROM utility_bills WHERE tenant_id = $1)", tenantID)
		_, _ = db.ExecContext(ctx, "DELETE FROM utility_bills WHERE tenant_id = $1", tenantID)
		_, _ = db.ExecContext(ctx, "DELETE FROM meter_readings WHERE tenant_id = $1", tenantID)
		_, _ = db.ExecContext(ctx, "DELETE FROM rate_tables WHERE tenant_id = $1", tenantID)
		_, _ = db.ExecContext(ctx, "DELETE FROM lots WHERE tenant_id = $1", tenantID)
		_, _ = db.ExecContext(ctx, "DELETE FROM parks WHERE tenant_id = $1", tenantID)
	}
	cleanup()
	t.Cleanup(cleanup)

	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, `
INSERT INTO parks (id, tenant_id, name, timezone, region, created_at, updated_at)
VALUES ($1,$2,'Flow Park','UTC','midwest',$3,$3)`, parkID, tenantID, now); err != nil {
		t.Fatalf("insert park: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO lots (
	id, park_id, tenant_id, lot_number, occupants, square_footage,
	active_tenancy, status, created_at, updated_at
) VALUES ($1,$2,$3,'A-01',2,800,'tenancy-1','active',$4,$4)`, lotID, parkID, tenantID, now); err != nil {
		t.Fatalf("insert lot: %v", err)
	}

	periodStart := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	if _, err := db.ExecContext(ctx, `
INSERT INTO rate_tables (
	id, tenant_id, park_id, utility_type, method, tiers, base_rate,
	flat_amount, basis, effective_from, created_at
) VALUES ('rt-flow-water',$1,$2,'water','direct_meter',
	'[{"min_usage":0,"max_usage":null,"rate":1.5}]',0,0,'',$3,$4)`,
		tenantID, parkID, periodStart.AddDate(0, -1, 0), now); err != nil {
		t.Fatalf("insert rate table: %v", err)
	}

	insertReading := func(id string, value float64, at time.Time) {
		t.Helper()
		if _, err := db.ExecContext(ctx, `
INSERT INTO meter_readings (
	id, tenant_id, meter_id, lot_id, utility_type, value, reset, source, recorded_at, created_at
) VALUES ($1,$2,'meter-flow-1',$3,'water',$4,FALSE,'test',$5,$5)`,
			id, tenantID, lotID, value, at); err != nil {
			t.Fatalf("insert reading %s: %v", id, err)
		}
	}
	insertReading("rd-flow-1", 100, periodStart)
	insertReading("rd-flow-2", 140, periodEnd.Add(-24*time.Hour))

	logger := log.New(io.Discard, "", 0)
	billRepo := billingrepo.NewBillRepository(db)
	rateTableRepo := billingrepo.NewRateTableRepository(db)
	invoiceRepo := billingrepo.NewParkInvoiceRepository(db)
	readingRepo := meteringrepo.NewReadingRepository(db)
	lotRepo := masterdatarepo.NewLotRepository(db)

	resolver, err := billing.NewResolver(rateTableRepo)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	usage, err := billingusage.NewProvider(readingRepo, invoiceRepo)
	if err != nil {
		t.Fatalf("new usage provider: %v", err)
	}
	bills, err := billingapp.NewBillService(billRepo, resolver, lotRepo, usage, nil, nil, logger, tenantID, 15)
	if err != nil {
		t.Fatalf("new bill service: %v", err)
	}
	status, err := billingapp.NewStatusService(billRepo, nil, nil, logger, tenantID)
	if err != nil {
		t.Fatalf("new status service: %v", err)
	}

	period, err := billing.NewBillingPeriod(periodStart, periodEnd)
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	bill, err := bills.Generate(ctx, billingapp.GenerateBillCommand{
		ParkID: parkID,
		LotID:  lotID,
		Period: period,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(bill.Charges) != 1 {
		t.Fatalf("expected 1 charge, got %d", len(bill.Charges))
	}
	// 40 units at 1.5 each.
	if bill.TotalAmount() != 60.0 {
		t.Fatalf("total mismatch: got=%v", bill.TotalAmount())
	}

	stored, err := status.Get(ctx, bill.ID)
	if err != nil {
		t.Fatalf("get stored bill: %v", err)
	}
	if stored.Status != billing.BillStatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}

	if _, err := status.MarkSent(ctx, bill.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	paymentRepo := paymentsrepo.NewPaymentRepository(db)
	payments, err := paymentsapp.NewPaymentService(paymentRepo, status, nil, logger)
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	if _, err := payments.Confirm(ctx, paymentsapp.ConfirmPaymentCommand{
		BillID:    bill.ID,
		Amount:    60.0,
		Method:    "ach",
		Reference: "proc-flow-001",
	}); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	settled, err := status.Get(ctx, bill.ID)
	if err != nil {
		t.Fatalf("get settled bill: %v", err)
	}
	if settled.Status != billing.BillStatusPaid {
		t.Fatalf("expected paid, got %s", settled.Status)
	}
}

func applyBillingMigrations(db *sql.DB) error {
	root := billingProjectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_init.sql"),
		filepath.Join(root, "migrations", "002_billing.sql"),
		filepath.Join(root, "migrations", "003_metering_payments.sql"),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func billingProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}
