package application

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "mhp-cloud/internal/billing/domain"
)

func generateSewerBill(t *testing.T, f *fixture, lotID string) *billing.UtilityBill {
	t.Helper()
	f.addLot(t, lotID, 2, 900)
	bill, err := f.service.Generate(context.Background(), GenerateBillCommand{
		ParkID: "park-1",
		LotID:  lotID,
		Period: januaryPeriod(t),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return bill
}

func TestSendThenPayLifecycle(t *testing.T) {
	f := newFixture(t)
	f.addSewerFlatFee(t)
	bill := generateSewerBill(t, f, "lot-1")

	sent, err := f.status.MarkSent(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if sent.Status != billing.BillStatusSent {
		t.Fatalf("status = %s, want sent", sent.Status)
	}

	paid, err := f.status.MarkPaid(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != billing.BillStatusPaid {
		t.Fatalf("status = %s, want paid", paid.Status)
	}

	// Generated, sent, paid.
	if len(f.publisher.events) != 3 {
		t.Fatalf("events = %d, want 3", len(f.publisher.events))
	}
	if _, ok := f.publisher.events[2].(BillPaid); !ok {
		t.Fatalf("last event = %T, want BillPaid", f.publisher.events[2])
	}
}

func TestPendingBillCannotBePaidDirectly(t *testing.T) {
	f := newFixture(t)
	f.addSewerFlatFee(t)
	bill := generateSewerBill(t, f, "lot-1")

	_, err := f.status.MarkPaid(context.Background(), bill.ID)
	if !errors.Is(err, billing.ErrInvalidStatusTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestSweepOverdueFlagsOnlyDueBills(t *testing.T) {
	f := newFixture(t)
	f.addSewerFlatFee(t)
	bill := generateSewerBill(t, f, "lot-1")
	if _, err := f.status.MarkSent(context.Background(), bill.ID); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	// Due date is Feb 15; the fixture clock is Feb 1 so nothing is due yet.
	flagged, err := f.status.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if flagged != 0 {
		t.Fatalf("flagged = %d, want 0", flagged)
	}

	f.clock.at = time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	late, err := NewStatusService(f.bills, f.publisher, f.clock, nil, "tenant-1")
	if err != nil {
		t.Fatalf("NewStatusService: %v", err)
	}
	flagged, err = late.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("flagged = %d, want 1", flagged)
	}

	got, err := late.Get(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != billing.BillStatusOverdue {
		t.Fatalf("status = %s, want overdue", got.Status)
	}

	// Late payment settles the overdue bill.
	paid, err := late.MarkPaid(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != billing.BillStatusPaid {
		t.Fatalf("status = %s, want paid", paid.Status)
	}
}

func TestVoidRejectsPaidBill(t *testing.T) {
	f := newFixture(t)
	f.addSewerFlatFee(t)
	bill := generateSewerBill(t, f, "lot-1")
	if _, err := f.status.MarkSent(context.Background(), bill.ID); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if _, err := f.status.MarkPaid(context.Background(), bill.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	_, err := f.status.Void(context.Background(), bill.ID, "typo")
	if !errors.Is(err, billing.ErrInvalidStatusTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestGetUnknownBill(t *testing.T) {
	f := newFixture(t)
	_, err := f.status.Get(context.Background(), "lot-9|20240101_20240131|v1")
	if !errors.Is(err, billing.ErrBillNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
