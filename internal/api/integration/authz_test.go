package integration_test

import (
	"context"
	"database/sql"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mhp-cloud/internal/auth"
	billingapp "mhp-cloud/internal/billing/application"
	billing "mhp-cloud/internal/billing/domain"
	billingmem "mhp-cloud/internal/billing/infrastructure/memory"
	"mhp-cloud/internal/billing/interfaces"
	masterdatamem "mhp-cloud/internal/masterdata/infrastructure/memory"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type noUsage struct{}

func (noUsage) MeterUsage(context.Context, string, billing.UtilityType, billing.BillingPeriod) (*billing.MeterUsage, error) {
	return nil, nil
}

func (noUsage) ParkTotals(context.Context, string, billing.UtilityType, billing.BillingPeriod) (*billingapp.ParkTotals, error) {
	return nil, nil
}

func TestCrossTenantBillQueryForbidden(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyTenantMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	tenantA := "tenant-a"
	tenantB := "tenant-b"
	parkID := "park-a-001"

	_, _ = db.ExecContext(ctx, "DELETE FROM lots WHERE park_id = $1", parkID)
	_, _ = db.ExecContext(ctx, "DELETE FROM parks WHERE id = $1", parkID)
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
INSERT INTO parks (id, tenant_id, name, timezone, region, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)`, parkID, tenantA, "Shady Grove MHP", "UTC", "midwest", now)
	if err != nil {
		t.Fatalf("insert park: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	tables := billingmem.NewRateTableRepository()
	resolver, err := billing.NewResolver(tables)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	billRepo := billingmem.NewBillRepository()
	lots := masterdatamem.NewLotRepository()
	bills, err := billingapp.NewBillService(billRepo, resolver, lots, noUsage{}, nil, nil, logger, tenantA, 0)
	if err != nil {
		t.Fatalf("new bill service: %v", err)
	}
	runs, err := billingapp.NewParkRunService(bills, lots, logger, 1)
	if err != nil {
		t.Fatalf("new run service: %v", err)
	}
	status, err := billingapp.NewStatusService(billRepo, nil, nil, logger, tenantA)
	if err != nil {
		t.Fatalf("new status service: %v", err)
	}

	parkChecker := auth.NewParkChecker(db)
	handler, err := interfaces.NewBillHandler(bills, runs, status, parkChecker, nil)
	if err != nil {
		t.Fatalf("new bill handler: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/bills", handler)

	secret := []byte("test-secret")
	policy := auth.NewDefaultPolicy(nil, nil)
	mw := auth.NewMiddleware(secret, policy)
	server := httptest.NewServer(mw.Wrap(mux))
	defer server.Close()

	token := mustToken(t, secret, tenantB, "viewer")
	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/bills?park_id="+parkID, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func applyTenantMigrations(db *sql.DB) error {
	root := projectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_init.sql"),
		filepath.Join(root, "migrations", "002_billing.sql"),
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

func mustToken(t *testing.T, secret []byte, tenantID, role string) string {
	t.Helper()
	claims := auth.Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
