package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	billing "mhp-cloud/internal/billing/domain"
)

type stubBillReader struct {
	bills []*billing.UtilityBill
}

func (s stubBillReader) ListByPark(_ context.Context, _ string, _ *billing.BillingPeriod) ([]*billing.UtilityBill, error) {
	return s.bills, nil
}

type stubRecomputer struct {
	totals map[string]float64
	errs   map[string]error
}

func (s stubRecomputer) Recompute(_ context.Context, bill *billing.UtilityBill) ([]billing.UtilityCharge, error) {
	if err, ok := s.errs[bill.ID]; ok {
		return nil, err
	}
	total := s.totals[bill.ID]
	return []billing.UtilityCharge{
		{UtilityType: billing.UtilityWater, Method: billing.MethodDirectMeter, Amount: total},
	}, nil
}

type recordingChannel struct {
	mu       sync.Mutex
	contents []string
}

func (r *recordingChannel) Send(_ context.Context, content string) error {
	r.mu.Lock()
	r.contents = append(r.contents, content)
	r.mu.Unlock()
	return nil
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func testPeriod(t *testing.T) billing.BillingPeriod {
	t.Helper()
	period, err := billing.NewBillingPeriod(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	return period
}

func storedBill(t *testing.T, lotID string, amount float64, status billing.BillStatus) *billing.UtilityBill {
	t.Helper()
	period := testPeriod(t)
	id, err := billing.BuildBillID(lotID, period, 1)
	if err != nil {
		t.Fatalf("build bill id: %v", err)
	}
	charges := []billing.UtilityCharge{
		{UtilityType: billing.UtilityWater, Method: billing.MethodDirectMeter, Amount: amount},
	}
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	bill, err := billing.NewUtilityBill(id, "tenant-1", "park-1", lotID, period, charges,
		time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), now)
	if err != nil {
		t.Fatalf("new bill: %v", err)
	}
	bill.Status = status
	return bill
}

func TestRunFlagsDriftedBills(t *testing.T) {
	root := t.TempDir()
	matched := storedBill(t, "lot-1", 55, billing.BillStatusSent)
	drifted := storedBill(t, "lot-2", 55, billing.BillStatusSent)
	voided := storedBill(t, "lot-3", 10, billing.BillStatusVoided)

	channel := &recordingChannel{}
	service, err := NewService(
		stubBillReader{bills: []*billing.UtilityBill{matched, drifted, voided}},
		stubRecomputer{totals: map[string]float64{matched.ID: 55, drifted.ID: 61.5}},
		Config{Defaults: Thresholds{AmountAbs: 0.01}, StorageRoot: root},
		channel,
		fixedClock{at: time.Date(2024, 2, 20, 3, 0, 0, 0, time.UTC)},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := service.Run(context.Background(), "park-1", testPeriod(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Checked != 2 {
		t.Fatalf("expected 2 checked bills (voided skipped), got %d", report.Checked)
	}
	if report.Mismatched != 1 {
		t.Fatalf("expected 1 mismatch, got %d", report.Mismatched)
	}

	var flagged *Finding
	for i := range report.Findings {
		if report.Findings[i].Flagged {
			flagged = &report.Findings[i]
		}
	}
	if flagged == nil {
		t.Fatal("expected a flagged finding")
	}
	if flagged.BillID != drifted.ID {
		t.Fatalf("expected %s flagged, got %s", drifted.ID, flagged.BillID)
	}
	if flagged.Delta != 6.5 {
		t.Fatalf("expected delta 6.50, got %.2f", flagged.Delta)
	}

	if report.ReportDir == "" {
		t.Fatal("expected report dir")
	}
	for _, name := range []string{"summary.json", "findings.csv"} {
		if _, err := os.Stat(filepath.Join(report.ReportDir, name)); err != nil {
			t.Fatalf("expected %s written: %v", name, err)
		}
	}

	if len(channel.contents) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(channel.contents))
	}
	if !strings.Contains(channel.contents[0], "1 of 2 bills drifted") {
		t.Fatalf("unexpected notification content: %s", channel.contents[0])
	}
}

func TestRunFlagsBillsThatNoLongerRecompute(t *testing.T) {
	bill := storedBill(t, "lot-1", 55, billing.BillStatusSent)
	service, err := NewService(
		stubBillReader{bills: []*billing.UtilityBill{bill}},
		stubRecomputer{errs: map[string]error{bill.ID: errors.New("meter anomaly: current below previous")}},
		Config{Defaults: Thresholds{AmountAbs: 0.01}, StorageRoot: t.TempDir()},
		nil,
		fixedClock{at: time.Date(2024, 2, 20, 3, 0, 0, 0, time.UTC)},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := service.Run(context.Background(), "park-1", testPeriod(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Mismatched != 1 {
		t.Fatalf("expected 1 mismatch, got %d", report.Mismatched)
	}
	if !strings.Contains(report.Findings[0].Reason, "meter anomaly") {
		t.Fatalf("expected anomaly reason, got %q", report.Findings[0].Reason)
	}
}

func TestRunWithinToleranceIsClean(t *testing.T) {
	bill := storedBill(t, "lot-1", 55, billing.BillStatusSent)
	channel := &recordingChannel{}
	service, err := NewService(
		stubBillReader{bills: []*billing.UtilityBill{bill}},
		stubRecomputer{totals: map[string]float64{bill.ID: 55.005}},
		Config{Defaults: Thresholds{AmountAbs: 0.01}, StorageRoot: t.TempDir()},
		channel,
		fixedClock{at: time.Date(2024, 2, 20, 3, 0, 0, 0, time.UTC)},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := service.Run(context.Background(), "park-1", testPeriod(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Mismatched != 0 {
		t.Fatalf("expected no mismatches, got %d", report.Mismatched)
	}
	if len(channel.contents) != 0 {
		t.Fatalf("expected no notification, got %d", len(channel.contents))
	}
}
