package application

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "mhp-cloud/internal/billing/domain"
	billingmem "mhp-cloud/internal/billing/infrastructure/memory"
	masterdata "mhp-cloud/internal/masterdata/domain"
	masterdatamem "mhp-cloud/internal/masterdata/infrastructure/memory"
)

type stubUsage struct {
	meter      map[string]*billing.MeterUsage
	meterErr   map[string]error
	parkTotals map[string]*ParkTotals
}

func newStubUsage() *stubUsage {
	return &stubUsage{
		meter:      make(map[string]*billing.MeterUsage),
		meterErr:   make(map[string]error),
		parkTotals: make(map[string]*ParkTotals),
	}
}

func (s *stubUsage) MeterUsage(_ context.Context, lotID string, utilityType billing.UtilityType, _ billing.BillingPeriod) (*billing.MeterUsage, error) {
	key := lotID + "/" + string(utilityType)
	if err := s.meterErr[key]; err != nil {
		return nil, err
	}
	return s.meter[key], nil
}

func (s *stubUsage) ParkTotals(_ context.Context, parkID string, utilityType billing.UtilityType, _ billing.BillingPeriod) (*ParkTotals, error) {
	return s.parkTotals[parkID+"/"+string(utilityType)], nil
}

type capturingPublisher struct {
	events []any
}

func (p *capturingPublisher) Publish(_ context.Context, event any) error {
	p.events = append(p.events, event)
	return nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func maxUsage(v float64) *float64 { return &v }

func januaryPeriod(t *testing.T) billing.BillingPeriod {
	t.Helper()
	period, err := billing.NewBillingPeriod(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("NewBillingPeriod: %v", err)
	}
	return period
}

type fixture struct {
	bills     *billingmem.BillRepository
	tables    *billingmem.RateTableRepository
	lots      *masterdatamem.LotRepository
	usage     *stubUsage
	publisher *capturingPublisher
	service   *BillService
	run       *ParkRunService
	status    *StatusService
	clock     fixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bills:     billingmem.NewBillRepository(),
		tables:    billingmem.NewRateTableRepository(),
		lots:      masterdatamem.NewLotRepository(),
		usage:     newStubUsage(),
		publisher: &capturingPublisher{},
		clock:     fixedClock{at: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)},
	}
	resolver, err := billing.NewResolver(f.tables)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	f.service, err = NewBillService(f.bills, resolver, f.lots, f.usage, f.publisher, f.clock, nil, "tenant-1", 15)
	if err != nil {
		t.Fatalf("NewBillService: %v", err)
	}
	f.run, err = NewParkRunService(f.service, f.lots, nil, 4)
	if err != nil {
		t.Fatalf("NewParkRunService: %v", err)
	}
	f.status, err = NewStatusService(f.bills, f.publisher, f.clock, nil, "tenant-1")
	if err != nil {
		t.Fatalf("NewStatusService: %v", err)
	}
	return f
}

func (f *fixture) addLot(t *testing.T, id string, occupants int, sqft float64) {
	t.Helper()
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	lot := &masterdata.Lot{
		ID:            id,
		ParkID:        "park-1",
		TenantID:      "tenant-1",
		LotNumber:     id,
		Occupants:     occupants,
		SquareFootage: sqft,
		Status:        masterdata.LotStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.lots.Save(context.Background(), lot); err != nil {
		t.Fatalf("save lot %s: %v", id, err)
	}
}

func (f *fixture) addWaterTiers(t *testing.T) {
	t.Helper()
	table := &billing.RateTable{
		ID:          "rt-water",
		TenantID:    "tenant-1",
		ParkID:      "park-1",
		UtilityType: billing.UtilityWater,
		Method:      billing.MethodDirectMeter,
		Tiers: []billing.RateTier{
			{MinUsage: 0, MaxUsage: maxUsage(1000), Rate: 0.03},
			{MinUsage: 1000, MaxUsage: maxUsage(5000), Rate: 0.05},
			{MinUsage: 5000, Rate: 0.08},
		},
		EffectiveFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.tables.Put(table); err != nil {
		t.Fatalf("put water table: %v", err)
	}
}

func (f *fixture) addSewerFlatFee(t *testing.T) {
	t.Helper()
	table := &billing.RateTable{
		ID:            "rt-sewer",
		TenantID:      "tenant-1",
		ParkID:        "park-1",
		UtilityType:   billing.UtilitySewer,
		Method:        billing.MethodFlatFee,
		FlatAmount:    25,
		EffectiveFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.tables.Put(table); err != nil {
		t.Fatalf("put sewer table: %v", err)
	}
}

func TestGenerateAssemblesChargesPerUtility(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot-1", 2, 900)
	f.addWaterTiers(t)
	f.addSewerFlatFee(t)
	f.usage.meter["lot-1/water"] = &billing.MeterUsage{
		MeterID:         "m-1",
		PreviousReading: 500,
		CurrentReading:  1800,
	}

	bill, err := f.service.Generate(context.Background(), GenerateBillCommand{
		ParkID: "park-1",
		LotID:  "lot-1",
		Period: januaryPeriod(t),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(bill.Charges) != 2 {
		t.Fatalf("charges = %d, want 2", len(bill.Charges))
	}
	if got := bill.TotalAmount(); got != 80.00 {
		t.Fatalf("total = %.2f, want 80.00 (55.00 water + 25.00 sewer)", got)
	}
	if bill.Status != billing.BillStatusPending {
		t.Fatalf("status = %s, want pending", bill.Status)
	}
	if bill.ID != "lot-1|20240101_20240131|v1" {
		t.Fatalf("bill id = %q", bill.ID)
	}
	wantDue := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	if !bill.DueDate.Equal(wantDue) {
		t.Fatalf("due date = %v, want %v", bill.DueDate, wantDue)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("events = %d, want 1", len(f.publisher.events))
	}
	generated, ok := f.publisher.events[0].(BillGenerated)
	if !ok {
		t.Fatalf("event type = %T", f.publisher.events[0])
	}
	if generated.TotalAmount != 80.00 {
		t.Fatalf("event total = %.2f", generated.TotalAmount)
	}
}

func TestGenerateSkipsUtilityWithoutReadings(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot-1", 2, 900)
	f.addWaterTiers(t)
	f.addSewerFlatFee(t)
	// No water readings recorded: the water charge is skipped, sewer still
	// bills.

	bill, err := f.service.Generate(context.Background(), GenerateBillCommand{
		ParkID: "park-1",
		LotID:  "lot-1",
		Period: januaryPeriod(t),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(bill.Charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(bill.Charges))
	}
	if bill.Charges[0].UtilityType != billing.UtilitySewer {
		t.Fatalf("charge utility = %s, want sewer", bill.Charges[0].UtilityType)
	}
}

func TestGenerateFailsLotOnMeterAnomaly(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot-1", 2, 900)
	f.addWaterTiers(t)
	f.addSewerFlatFee(t)
	f.usage.meter["lot-1/water"] = &billing.MeterUsage{
		MeterID:         "m-1",
		PreviousReading: 1800,
		CurrentReading:  500,
	}

	_, err := f.service.Generate(context.Background(), GenerateBillCommand{
		ParkID: "park-1",
		LotID:  "lot-1",
		Period: januaryPeriod(t),
	})
	var anomaly *billing.MeterAnomalyError
	if !errors.As(err, &anomaly) {
		t.Fatalf("err = %v, want MeterAnomalyError", err)
	}
	// Nothing was billed, not even the valid flat fee.
	bills, listErr := f.bills.ListByPark(context.Background(), "park-1", nil)
	if listErr != nil {
		t.Fatalf("ListByPark: %v", listErr)
	}
	if len(bills) != 0 {
		t.Fatalf("bills = %d, want 0", len(bills))
	}
}

func TestGenerateRejectsDuplicateForSamePeriod(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot-1", 2, 900)
	f.addSewerFlatFee(t)
	cmd := GenerateBillCommand{ParkID: "park-1", LotID: "lot-1", Period: januaryPeriod(t)}

	if _, err := f.service.Generate(context.Background(), cmd); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	_, err := f.service.Generate(context.Background(), cmd)
	var dup *billing.DuplicateBillError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateBillError", err)
	}
	if dup.ExistingID != "lot-1|20240101_20240131|v1" {
		t.Fatalf("existing id = %q", dup.ExistingID)
	}
}

func TestVoidThenRegenerateBumpsVersion(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot-1", 2, 900)
	f.addSewerFlatFee(t)
	cmd := GenerateBillCommand{ParkID: "park-1", LotID: "lot-1", Period: januaryPeriod(t)}

	first, err := f.service.Generate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if _, err := f.status.Void(context.Background(), first.ID, "wrong rate table"); err != nil {
		t.Fatalf("Void: %v", err)
	}

	second, err := f.service.Generate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if second.ID != "lot-1|20240101_20240131|v2" {
		t.Fatalf("regenerated id = %q, want v2", second.ID)
	}
}

func TestGenerateRejectsArchivedLot(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot-1", 2, 900)
	f.addSewerFlatFee(t)
	if err := f.lots.Archive(context.Background(), "lot-1", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	_, err := f.service.Generate(context.Background(), GenerateBillCommand{
		ParkID: "park-1",
		LotID:  "lot-1",
		Period: januaryPeriod(t),
	})
	if err == nil {
		t.Fatal("expected error for archived lot")
	}
}

func TestGenerateRUBSAllocatesAcrossActiveLots(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"lot-1", "lot-2", "lot-3", "lot-4"} {
		f.addLot(t, id, 2, 1000)
	}
	table := &billing.RateTable{
		ID:            "rt-water-rubs",
		TenantID:      "tenant-1",
		ParkID:        "park-1",
		UtilityType:   billing.UtilityWater,
		Method:        billing.MethodRUBS,
		Basis:         billing.BasisEqualSplit,
		EffectiveFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.tables.Put(table); err != nil {
		t.Fatalf("put rubs table: %v", err)
	}
	f.usage.parkTotals["park-1/water"] = &ParkTotals{TotalUsage: 10000, TotalCost: 400}

	bill, err := f.service.Generate(context.Background(), GenerateBillCommand{
		ParkID: "park-1",
		LotID:  "lot-2",
		Period: januaryPeriod(t),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := bill.TotalAmount(); got != 100.00 {
		t.Fatalf("total = %.2f, want 100.00 (equal split of 400 across 4 lots)", got)
	}
}

func TestGenerateFailsLotOnZeroOccupancyDenominator(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot-1", 0, 1000)
	f.addLot(t, "lot-2", 0, 900)
	table := &billing.RateTable{
		ID:            "rt-water-rubs",
		TenantID:      "tenant-1",
		ParkID:        "park-1",
		UtilityType:   billing.UtilityWater,
		Method:        billing.MethodRUBS,
		Basis:         billing.BasisOccupancy,
		EffectiveFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.tables.Put(table); err != nil {
		t.Fatalf("put rubs table: %v", err)
	}
	f.usage.parkTotals["park-1/water"] = &ParkTotals{TotalUsage: 10000, TotalCost: 400}

	_, err := f.service.Generate(context.Background(), GenerateBillCommand{
		ParkID: "park-1",
		LotID:  "lot-1",
		Period: januaryPeriod(t),
	})
	var confErr *billing.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Generate = %v, want ConfigurationError for zero occupancy", err)
	}
	stored, findErr := f.bills.FindActiveByLotAndPeriod(context.Background(), "lot-1", januaryPeriod(t))
	if findErr != nil {
		t.Fatalf("FindActiveByLotAndPeriod: %v", findErr)
	}
	if stored != nil {
		t.Fatal("bill persisted despite misconfigured table")
	}

	report, err := f.run.Run(context.Background(), "park-1", januaryPeriod(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("run failures = %d, want both lots reported", len(report.Failures))
	}
}
