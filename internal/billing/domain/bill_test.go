package billing

import (
	"errors"
	"testing"
	"time"
)

func testPeriod(t *testing.T) BillingPeriod {
	t.Helper()
	period, err := NewBillingPeriod(
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("new billing period: %v", err)
	}
	return period
}

func testBill(t *testing.T) *UtilityBill {
	t.Helper()
	period := testPeriod(t)
	now := period.End.Add(time.Hour)
	bill, err := NewUtilityBill("lot-1|20240101_20240131|v1", "tenant-a", "park-001", "lot-1", period,
		[]UtilityCharge{
			{UtilityType: UtilityWater, Method: MethodDirectMeter, Amount: 55.00},
			{UtilityType: UtilitySewer, Method: MethodRUBS, Amount: 100.00},
			{UtilityType: UtilityGas, Method: MethodFlatFee, Amount: 25.50},
		},
		period.DueDate(15), now)
	if err != nil {
		t.Fatalf("new utility bill: %v", err)
	}
	return bill
}

func TestUtilityBill_TotalAlwaysSumOfCharges(t *testing.T) {
	bill := testBill(t)
	if bill.TotalAmount() != 180.50 {
		t.Fatalf("total mismatch: got=%.2f want=180.50", bill.TotalAmount())
	}

	// The total tracks the charges through the whole lifecycle.
	now := bill.DueDate.Add(-24 * time.Hour)
	if err := bill.MarkSent(now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if bill.TotalAmount() != 180.50 {
		t.Fatalf("total drifted after send: %.2f", bill.TotalAmount())
	}
	if err := bill.MarkPaid(now.Add(time.Hour)); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if bill.TotalAmount() != 180.50 {
		t.Fatalf("total drifted after payment: %.2f", bill.TotalAmount())
	}
}

func TestUtilityBill_LifecyclePendingSentPaid(t *testing.T) {
	bill := testBill(t)
	if bill.Status != BillStatusPending {
		t.Fatalf("new bill status: %s", bill.Status)
	}
	now := bill.DueDate.Add(-24 * time.Hour)
	if err := bill.MarkSent(now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := bill.MarkPaid(now.Add(time.Hour)); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if bill.Status != BillStatusPaid || bill.PaidAt.IsZero() {
		t.Fatalf("paid state mismatch: status=%s paidAt=%v", bill.Status, bill.PaidAt)
	}
}

func TestUtilityBill_PaidIsTerminal(t *testing.T) {
	bill := testBill(t)
	now := bill.DueDate.Add(-24 * time.Hour)
	if err := bill.MarkSent(now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := bill.MarkPaid(now); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := bill.MarkSent(now); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition from paid, got %v", err)
	}
	if err := bill.Void("supersede", now); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("paid bill must not be voidable, got %v", err)
	}
}

func TestUtilityBill_PendingDirectlyToOverdue(t *testing.T) {
	bill := testBill(t)
	afterDue := bill.DueDate.Add(24 * time.Hour)
	if err := bill.MarkOverdue(afterDue); err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if bill.Status != BillStatusOverdue {
		t.Fatalf("status mismatch: %s", bill.Status)
	}

	// Late payment remains possible.
	if err := bill.MarkPaid(afterDue.Add(time.Hour)); err != nil {
		t.Fatalf("late payment: %v", err)
	}
}

func TestUtilityBill_OverdueRequiresDueDatePassed(t *testing.T) {
	bill := testBill(t)
	if err := bill.MarkOverdue(bill.DueDate.Add(-time.Hour)); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected transition rejection before due date, got %v", err)
	}
}

func TestUtilityBill_PendingCannotBePaidDirectly(t *testing.T) {
	bill := testBill(t)
	if err := bill.MarkPaid(bill.DueDate); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected pending -> paid rejection, got %v", err)
	}
}

func TestUtilityBill_VoidRecordsReason(t *testing.T) {
	bill := testBill(t)
	now := bill.CreatedAt.Add(time.Hour)
	if err := bill.Void("meter reading corrected", now); err != nil {
		t.Fatalf("void: %v", err)
	}
	if bill.Status != BillStatusVoided || bill.VoidReason != "meter reading corrected" || bill.VoidedAt.IsZero() {
		t.Fatalf("void state mismatch: %+v", bill)
	}
}

func TestNewBillingPeriod_RejectsInvertedRange(t *testing.T) {
	start := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewBillingPeriod(start, start); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period for start == end, got %v", err)
	}
	if _, err := NewBillingPeriod(start, start.AddDate(0, 0, -1)); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period for start > end, got %v", err)
	}
}

func TestBuildBillID_Deterministic(t *testing.T) {
	period := testPeriod(t)
	first, err := BuildBillID("lot-9", period, 1)
	if err != nil {
		t.Fatalf("build bill id: %v", err)
	}
	second, err := BuildBillID("lot-9", period, 1)
	if err != nil {
		t.Fatalf("build bill id: %v", err)
	}
	if first != second {
		t.Fatalf("bill id not deterministic: %s vs %s", first, second)
	}
	if first != "lot-9|20240101_20240131|v1" {
		t.Fatalf("unexpected bill id: %s", first)
	}
}
