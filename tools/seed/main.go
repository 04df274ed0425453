// Command seed loads demo master data, rate tables, meter readings and park
// invoices into a database so billing runs have something to chew on.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn         string
	tenantID    string
	parkPrefix  string
	parkCount   int
	lotsPerPark int
	startDate   string
	months      int
	seed        int64
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.parkCount <= 0 {
		log.Fatal("park-count must be > 0")
	}
	if cfg.lotsPerPark <= 0 {
		log.Fatal("lots-per-park must be > 0")
	}
	if cfg.months <= 0 {
		log.Fatal("months must be > 0")
	}

	start, err := time.Parse("2006-01-02", cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	ctx := context.Background()
	rng := rand.New(rand.NewSource(cfg.seed))
	now := time.Now().UTC()

	for p := 0; p < cfg.parkCount; p++ {
		parkID := fmt.Sprintf("%s-%03d", cfg.parkPrefix, p+1)
		if err := seedPark(ctx, db, cfg.tenantID, parkID, p, now); err != nil {
			log.Fatalf("seed park %s: %v", parkID, err)
		}
		if err := seedRateTables(ctx, db, cfg.tenantID, parkID, start, now); err != nil {
			log.Fatalf("seed rate tables %s: %v", parkID, err)
		}
		for l := 0; l < cfg.lotsPerPark; l++ {
			lotID := fmt.Sprintf("%s-lot-%03d", parkID, l+1)
			if err := seedLot(ctx, db, cfg.tenantID, parkID, lotID, l, rng, now); err != nil {
				log.Fatalf("seed lot %s: %v", lotID, err)
			}
			if err := seedReadings(ctx, db, cfg.tenantID, lotID, start, cfg.months, rng); err != nil {
				log.Fatalf("seed readings %s: %v", lotID, err)
			}
		}
		if err := seedParkInvoices(ctx, db, cfg.tenantID, parkID, start, cfg.months, cfg.lotsPerPark, rng, now); err != nil {
			log.Fatalf("seed invoices %s: %v", parkID, err)
		}
		log.Printf("seeded park %s with %d lots over %d months", parkID, cfg.lotsPerPark, cfg.months)
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "dsn", envDefault("PG_DSN", os.Getenv("DATABASE_URL")), "postgres dsn")
	flag.StringVar(&cfg.tenantID, "tenant", "tenant-demo", "tenant id")
	flag.StringVar(&cfg.parkPrefix, "park-prefix", "park-demo", "park id prefix")
	flag.IntVar(&cfg.parkCount, "park-count", 1, "number of parks")
	flag.IntVar(&cfg.lotsPerPark, "lots-per-park", 20, "number of lots per park")
	flag.StringVar(&cfg.startDate, "start-date", "2026-01-01", "first billing month (YYYY-MM-DD)")
	flag.IntVar(&cfg.months, "months", 3, "months of readings to seed")
	flag.Int64Var(&cfg.seed, "seed", 1, "rng seed")
	flag.Parse()
	return cfg
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func seedPark(ctx context.Context, db *sql.DB, tenantID, parkID string, idx int, now time.Time) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO parks (id, tenant_id, name, timezone, region, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
ON CONFLICT (id) DO NOTHING`,
		parkID, tenantID, fmt.Sprintf("Demo Park %d", idx+1), "America/Chicago", "midwest", now)
	return err
}

func seedLot(ctx context.Context, db *sql.DB, tenantID, parkID, lotID string, idx int, rng *rand.Rand, now time.Time) error {
	occupants := 1 + rng.Intn(4)
	sqft := 600.0 + float64(rng.Intn(8))*100
	_, err := db.ExecContext(ctx, `
INSERT INTO lots (
	id, park_id, tenant_id, lot_number, occupants, square_footage,
	active_tenancy, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,'active',$8,$8)
ON CONFLICT (id) DO NOTHING`,
		lotID, parkID, tenantID, fmt.Sprintf("A-%02d", idx+1), occupants, sqft,
		fmt.Sprintf("tenancy-%s", lotID), now)
	return err
}

func seedRateTables(ctx context.Context, db *sql.DB, tenantID, parkID string, effectiveFrom, now time.Time) error {
	tiers, err := json.Marshal([]map[string]any{
		{"min_usage": 0.0, "max_usage": 50.0, "rate": 0.8},
		{"min_usage": 50.0, "max_usage": nil, "rate": 1.2},
	})
	if err != nil {
		return err
	}
	rows := []struct {
		utility    string
		method     string
		tiers      any
		baseRate   float64
		flatAmount float64
		basis      string
	}{
		{"water", "direct_meter", tiers, 0, 0, ""},
		{"sewer", "rubs", nil, 0, 0, "occupancy"},
		{"gas", "flat_fee", nil, 0, 18.5, ""},
	}
	for i, row := range rows {
		id := fmt.Sprintf("rt-%s-%s", parkID, row.utility)
		_, err := db.ExecContext(ctx, `
INSERT INTO rate_tables (
	id, tenant_id, park_id, utility_type, method, tiers, base_rate,
	flat_amount, basis, effective_from, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING`,
			id, tenantID, parkID, row.utility, row.method, row.tiers,
			row.baseRate, row.flatAmount, row.basis, effectiveFrom, now.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			return err
		}
	}
	return nil
}

func seedReadings(ctx context.Context, db *sql.DB, tenantID, lotID string, start time.Time, months int, rng *rand.Rand) error {
	meterID := "meter-" + lotID
	value := 100.0 + rng.Float64()*50
	for m := 0; m <= months; m++ {
		recordedAt := start.AddDate(0, m, 0)
		id := fmt.Sprintf("rd-%s-%s", lotID, recordedAt.Format("20060102"))
		_, err := db.ExecContext(ctx, `
INSERT INTO meter_readings (
	id, tenant_id, meter_id, lot_id, utility_type, value, reset, source, recorded_at, created_at
) VALUES ($1,$2,$3,$4,'water',$5,FALSE,'seed',$6,$6)
ON CONFLICT (id) DO NOTHING`,
			id, tenantID, meterID, lotID, value, recordedAt)
		if err != nil {
			return err
		}
		value += 20 + rng.Float64()*40
	}
	return nil
}

func seedParkInvoices(ctx context.Context, db *sql.DB, tenantID, parkID string, start time.Time, months, lots int, rng *rand.Rand, now time.Time) error {
	for m := 0; m < months; m++ {
		periodStart := start.AddDate(0, m, 0)
		periodEnd := start.AddDate(0, m+1, 0).AddDate(0, 0, -1)
		usage := float64(lots) * (40 + rng.Float64()*20)
		cost := usage * 0.9
		id := fmt.Sprintf("pinv-%s-sewer-%s", parkID, periodStart.Format("200601"))
		_, err := db.ExecContext(ctx, `
INSERT INTO park_invoices (
	id, tenant_id, park_id, utility_type, period_start, period_end,
	total_usage, total_cost, created_at
) VALUES ($1,$2,$3,'sewer',$4,$5,$6,$7,$8)
ON CONFLICT (park_id, utility_type, period_start, period_end) DO NOTHING`,
			id, tenantID, parkID, periodStart, periodEnd, usage, cost, now)
		if err != nil {
			return err
		}
	}
	return nil
}
