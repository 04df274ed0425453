package billing

import (
	"errors"
	"testing"
)

func TestRateTableValidate_DirectMeterRequiresContiguousTiers(t *testing.T) {
	table := waterTieredTable()
	if err := table.Validate(); err != nil {
		t.Fatalf("valid table rejected: %v", err)
	}

	table.Tiers = []RateTier{
		{MinUsage: 0, MaxUsage: maxUsage(1000), Rate: 0.03},
		{MinUsage: 1200, MaxUsage: maxUsage(5000), Rate: 0.05},
	}
	if err := table.Validate(); !errors.Is(err, ErrInvalidRateTable) {
		t.Fatalf("expected gap rejection, got %v", err)
	}

	table.Tiers = []RateTier{
		{MinUsage: 0, Rate: 0.03},
		{MinUsage: 1000, MaxUsage: maxUsage(5000), Rate: 0.05},
	}
	if err := table.Validate(); !errors.Is(err, ErrInvalidRateTable) {
		t.Fatalf("expected non-final unbounded tier rejection, got %v", err)
	}

	table.Tiers = []RateTier{
		{MinUsage: 100, MaxUsage: maxUsage(1000), Rate: 0.03},
	}
	if err := table.Validate(); !errors.Is(err, ErrInvalidRateTable) {
		t.Fatalf("expected first tier must start at zero, got %v", err)
	}
}

func TestRateTableValidate_ExactlyOnePricingShape(t *testing.T) {
	table := waterTieredTable()
	table.FlatAmount = 10
	if err := table.Validate(); !errors.Is(err, ErrInvalidRateTable) {
		t.Fatalf("expected rejection of tiers plus flat amount, got %v", err)
	}

	flat := &RateTable{ParkID: "park-001", UtilityType: UtilityGas, Method: MethodFlatFee, FlatAmount: 25.50}
	if err := flat.Validate(); err != nil {
		t.Fatalf("valid flat fee table rejected: %v", err)
	}
	flat.Tiers = []RateTier{{MinUsage: 0, Rate: 1}}
	if err := flat.Validate(); !errors.Is(err, ErrInvalidRateTable) {
		t.Fatalf("expected flat fee table with tiers rejection, got %v", err)
	}

	rubs := rubsTable(BasisEqualSplit)
	if err := rubs.Validate(); err != nil {
		t.Fatalf("valid rubs table rejected: %v", err)
	}
	rubs.Basis = ""
	if err := rubs.Validate(); !errors.Is(err, ErrInvalidRateTable) {
		t.Fatalf("expected rubs table without basis rejection, got %v", err)
	}
}

func TestComputeFlatFeeCharge(t *testing.T) {
	table := &RateTable{ParkID: "park-001", UtilityType: UtilityGas, Method: MethodFlatFee, FlatAmount: 25.50}
	charge, err := ComputeFlatFeeCharge(table)
	if err != nil {
		t.Fatalf("compute flat fee charge: %v", err)
	}
	if charge.Usage != nil {
		t.Fatalf("flat fee charge must not carry usage, got %v", *charge.Usage)
	}
	if charge.Amount != 25.50 {
		t.Fatalf("amount mismatch: got=%.2f want=25.50", charge.Amount)
	}
}

func TestComputeCharge_DispatchesByMethod(t *testing.T) {
	meter := &MeterUsage{MeterID: "mtr-1", PreviousReading: 0, CurrentReading: 100}
	charge, err := ComputeCharge(UsageInputs{Meter: meter}, waterTieredTable())
	if err != nil {
		t.Fatalf("dispatch direct meter: %v", err)
	}
	if charge.Method != MethodDirectMeter {
		t.Fatalf("method mismatch: %s", charge.Method)
	}

	if _, err := ComputeCharge(UsageInputs{}, waterTieredTable()); !errors.Is(err, ErrInvalidRateTable) {
		t.Fatalf("expected missing meter inputs rejection, got %v", err)
	}

	flat := &RateTable{ParkID: "park-001", UtilityType: UtilityGas, Method: MethodFlatFee, FlatAmount: 10}
	charge, err = ComputeCharge(UsageInputs{}, flat)
	if err != nil {
		t.Fatalf("dispatch flat fee: %v", err)
	}
	if charge.Method != MethodFlatFee {
		t.Fatalf("method mismatch: %s", charge.Method)
	}
}

func TestNormalizeFoldsCaseAndWhitespace(t *testing.T) {
	ut, ok := NormalizeUtilityType(" WATER ")
	if !ok || ut != UtilityWater {
		t.Fatalf("NormalizeUtilityType(WATER) = %q, %v", ut, ok)
	}
	if _, ok := NormalizeUtilityType("steam"); ok {
		t.Fatal("unknown utility type accepted")
	}
	method, ok := NormalizeBillingMethod("Direct_Meter")
	if !ok || method != MethodDirectMeter {
		t.Fatalf("NormalizeBillingMethod(Direct_Meter) = %q, %v", method, ok)
	}
	basis, ok := NormalizeAllocationBasis("OCCUPANCY")
	if !ok || basis != BasisOccupancy {
		t.Fatalf("NormalizeAllocationBasis(OCCUPANCY) = %q, %v", basis, ok)
	}
}
