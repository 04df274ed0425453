package billing

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type stubRateTableStore struct {
	tables []*RateTable
}

func (s *stubRateTableStore) FindEffective(_ context.Context, parkID string, utilityType UtilityType, asOf time.Time) (*RateTable, error) {
	var best *RateTable
	for _, table := range s.tables {
		if table.ParkID != parkID || table.UtilityType != utilityType || table.EffectiveFrom.After(asOf) {
			continue
		}
		if best == nil || table.EffectiveFrom.After(best.EffectiveFrom) {
			best = table
		}
	}
	return best, nil
}

func (s *stubRateTableStore) ConfiguredUtilityTypes(_ context.Context, parkID string, asOf time.Time) ([]UtilityType, error) {
	seen := make(map[UtilityType]struct{})
	var result []UtilityType
	for _, table := range s.tables {
		if table.ParkID != parkID || table.EffectiveFrom.After(asOf) {
			continue
		}
		if _, ok := seen[table.UtilityType]; !ok {
			seen[table.UtilityType] = struct{}{}
			result = append(result, table.UtilityType)
		}
	}
	return result, nil
}

func TestResolver_PicksVersionEffectiveAtDate(t *testing.T) {
	january := waterTieredTable()
	march := waterTieredTable()
	march.ID = "rt-water-2"
	march.EffectiveFrom = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	march.Tiers = []RateTier{{MinUsage: 0, Rate: 0.04}}

	resolver, err := NewResolver(&stubRateTableStore{tables: []*RateTable{march, january}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ctx := context.Background()

	got, err := resolver.Resolve(ctx, "park-001", UtilityWater, time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("resolve february: %v", err)
	}
	if got.ID != "rt-water-1" {
		t.Fatalf("expected january version, got %s", got.ID)
	}

	got, err = resolver.Resolve(ctx, "park-001", UtilityWater, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("resolve march: %v", err)
	}
	if got.ID != "rt-water-2" {
		t.Fatalf("expected march version, got %s", got.ID)
	}
}

func TestResolver_IdenticalInputsIdenticalResult(t *testing.T) {
	resolver, err := NewResolver(&stubRateTableStore{tables: []*RateTable{waterTieredTable()}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ctx := context.Background()
	asOf := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	first, err := resolver.Resolve(ctx, "park-001", UtilityWater, asOf)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := resolver.Resolve(ctx, "park-001", UtilityWater, asOf)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolver not idempotent: %+v vs %+v", first, second)
	}
}

func TestResolver_MissingTableIsConfigurationError(t *testing.T) {
	resolver, err := NewResolver(&stubRateTableStore{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	_, err = resolver.Resolve(context.Background(), "park-001", UtilityElectric, time.Now())
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfg.ParkID != "park-001" || cfg.UtilityType != UtilityElectric {
		t.Fatalf("configuration error context mismatch: %+v", cfg)
	}
}
