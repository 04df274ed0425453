package billing

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func maxUsage(v float64) *float64 { return &v }

func waterTieredTable() *RateTable {
	return &RateTable{
		ID:          "rt-water-1",
		TenantID:    "tenant-a",
		ParkID:      "park-001",
		UtilityType: UtilityWater,
		Method:      MethodDirectMeter,
		Tiers: []RateTier{
			{MinUsage: 0, MaxUsage: maxUsage(1000), Rate: 0.03},
			{MinUsage: 1000, MaxUsage: maxUsage(5000), Rate: 0.05},
			{MinUsage: 5000, Rate: 0.08},
		},
		EffectiveFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestComputeTieredCharge_SpansTwoTiers(t *testing.T) {
	charge, err := ComputeTieredCharge(MeterUsage{MeterID: "mtr-1", PreviousReading: 500, CurrentReading: 1800}, waterTieredTable())
	if err != nil {
		t.Fatalf("compute tiered charge: %v", err)
	}
	if charge.Usage == nil || *charge.Usage != 1300 {
		t.Fatalf("usage mismatch: got=%v want=1300", charge.Usage)
	}
	if charge.Amount != 55.00 {
		t.Fatalf("amount mismatch: got=%.2f want=55.00", charge.Amount)
	}

	var breakdown TieredBreakdown
	if err := json.Unmarshal(charge.Breakdown, &breakdown); err != nil {
		t.Fatalf("decode breakdown: %v", err)
	}
	if len(breakdown.Tiers) != 2 {
		t.Fatalf("expected 2 consumed tiers, got %d", len(breakdown.Tiers))
	}
	if breakdown.Tiers[0].Units != 500 || breakdown.Tiers[0].Amount != 15.00 {
		t.Fatalf("tier 1 mismatch: units=%v amount=%v", breakdown.Tiers[0].Units, breakdown.Tiers[0].Amount)
	}
	if breakdown.Tiers[1].Units != 800 || breakdown.Tiers[1].Amount != 40.00 {
		t.Fatalf("tier 2 mismatch: units=%v amount=%v", breakdown.Tiers[1].Units, breakdown.Tiers[1].Amount)
	}

	var consumedUnits float64
	for _, tier := range breakdown.Tiers {
		consumedUnits += tier.Units
	}
	if consumedUnits != *charge.Usage {
		t.Fatalf("tier units do not sum to usage: got=%v want=%v", consumedUnits, *charge.Usage)
	}
}

func TestComputeTieredCharge_ZeroUsageStillEmitsCharge(t *testing.T) {
	charge, err := ComputeTieredCharge(MeterUsage{MeterID: "mtr-1", PreviousReading: 700, CurrentReading: 700}, waterTieredTable())
	if err != nil {
		t.Fatalf("compute tiered charge: %v", err)
	}
	if charge.Usage == nil || *charge.Usage != 0 {
		t.Fatalf("expected zero usage, got %v", charge.Usage)
	}
	if charge.Amount != 0 {
		t.Fatalf("expected zero amount, got %.2f", charge.Amount)
	}
	if charge.UtilityType != UtilityWater {
		t.Fatalf("utility type mismatch: %s", charge.UtilityType)
	}
}

func TestComputeTieredCharge_DecreaseWithoutResetFails(t *testing.T) {
	_, err := ComputeTieredCharge(MeterUsage{MeterID: "mtr-9", PreviousReading: 500, CurrentReading: 400}, waterTieredTable())
	var anomaly *MeterAnomalyError
	if !errors.As(err, &anomaly) {
		t.Fatalf("expected MeterAnomalyError, got %v", err)
	}
	if anomaly.MeterID != "mtr-9" || anomaly.Previous != 500 || anomaly.Current != 400 {
		t.Fatalf("anomaly detail mismatch: %+v", anomaly)
	}
}

func TestComputeTieredCharge_ResetBillsFromZero(t *testing.T) {
	charge, err := ComputeTieredCharge(MeterUsage{MeterID: "mtr-9", PreviousReading: 500, CurrentReading: 400, Reset: true}, waterTieredTable())
	if err != nil {
		t.Fatalf("compute tiered charge with reset: %v", err)
	}
	if charge.Usage == nil || *charge.Usage != 400 {
		t.Fatalf("expected usage 400 after reset, got %v", charge.Usage)
	}
	if charge.Amount != 12.00 {
		t.Fatalf("amount mismatch: got=%.2f want=12.00", charge.Amount)
	}
}

func TestComputeTieredCharge_StartsInsideLaterTier(t *testing.T) {
	// A lot already past tier 1 pays tier 2 prices from the first unit; the
	// walk is positioned by the reading pair, not restarted at zero.
	charge, err := ComputeTieredCharge(MeterUsage{MeterID: "mtr-1", PreviousReading: 1200, CurrentReading: 1500}, waterTieredTable())
	if err != nil {
		t.Fatalf("compute tiered charge: %v", err)
	}
	if charge.Usage == nil || *charge.Usage != 300 {
		t.Fatalf("usage mismatch: got=%v want=300", charge.Usage)
	}
	if charge.Amount != 15.00 {
		t.Fatalf("amount mismatch: got=%.2f want=15.00", charge.Amount)
	}

	var breakdown TieredBreakdown
	if err := json.Unmarshal(charge.Breakdown, &breakdown); err != nil {
		t.Fatalf("decode breakdown: %v", err)
	}
	if len(breakdown.Tiers) != 1 {
		t.Fatalf("expected 1 consumed tier, got %d", len(breakdown.Tiers))
	}
	if breakdown.Tiers[0].MinUsage != 1000 || breakdown.Tiers[0].Units != 300 || breakdown.Tiers[0].Rate != 0.05 {
		t.Fatalf("tier mismatch: %+v", breakdown.Tiers[0])
	}
}

func TestComputeTieredCharge_ResidualChargedAtLastTierRate(t *testing.T) {
	// No unbounded tail: usage beyond tier capacity is billed at the last
	// tier's rate, not dropped.
	table := waterTieredTable()
	table.Tiers = []RateTier{
		{MinUsage: 0, MaxUsage: maxUsage(100), Rate: 0.10},
		{MinUsage: 100, MaxUsage: maxUsage(200), Rate: 0.20},
	}

	charge, err := ComputeTieredCharge(MeterUsage{MeterID: "mtr-1", PreviousReading: 0, CurrentReading: 300}, table)
	if err != nil {
		t.Fatalf("compute tiered charge: %v", err)
	}
	// 100@0.10 + 100@0.20 + 100 residual @0.20
	if charge.Amount != 50.00 {
		t.Fatalf("amount mismatch: got=%.2f want=50.00", charge.Amount)
	}

	var breakdown TieredBreakdown
	if err := json.Unmarshal(charge.Breakdown, &breakdown); err != nil {
		t.Fatalf("decode breakdown: %v", err)
	}
	last := breakdown.Tiers[len(breakdown.Tiers)-1]
	if !last.Overflow || last.Units != 100 || last.Rate != 0.20 {
		t.Fatalf("overflow tier mismatch: %+v", last)
	}
}

func TestComputeTieredCharge_ImpliedAverageRateConsistent(t *testing.T) {
	charge, err := ComputeTieredCharge(MeterUsage{MeterID: "mtr-1", PreviousReading: 0, CurrentReading: 6200}, waterTieredTable())
	if err != nil {
		t.Fatalf("compute tiered charge: %v", err)
	}
	usage := *charge.Usage
	implied := charge.Amount / usage
	if math.Abs(usage*implied-charge.Amount) > 1e-6 {
		t.Fatalf("usage x implied average rate %.6f does not reproduce amount %.2f", usage*implied, charge.Amount)
	}
}
