package billing

import (
	"fmt"
	"time"
)

// RateTier prices one contiguous usage range. MaxUsage nil means unbounded.
type RateTier struct {
	MinUsage float64  `json:"min_usage"`
	MaxUsage *float64 `json:"max_usage,omitempty"`
	Rate     float64  `json:"rate"`
}

// Capacity returns the usage the tier can absorb, or -1 when unbounded.
func (t RateTier) Capacity() float64 {
	if t.MaxUsage == nil {
		return -1
	}
	return *t.MaxUsage - t.MinUsage
}

// RateTable defines how one utility type is priced for a park.
// Tables are immutable versions keyed by EffectiveFrom; edits create a new
// version rather than retroactively changing historical bills.
type RateTable struct {
	ID            string
	TenantID      string
	ParkID        string
	UtilityType   UtilityType
	Method        BillingMethod
	Tiers         []RateTier
	BaseRate      float64
	FlatAmount    float64
	Basis         AllocationBasis
	EffectiveFrom time.Time
	CreatedAt     time.Time
}

// Validate checks the table's internal consistency: the pricing fields
// populated must match the method, and tiers must be contiguous,
// non-overlapping, and start at zero.
func (rt *RateTable) Validate() error {
	if rt == nil {
		return ErrInvalidRateTable
	}
	if rt.ParkID == "" {
		return ErrEmptyParkID
	}
	if _, ok := NormalizeUtilityType(string(rt.UtilityType)); !ok {
		return fmt.Errorf("%w: unknown utility type %q", ErrInvalidRateTable, rt.UtilityType)
	}
	switch rt.Method {
	case MethodDirectMeter:
		if len(rt.Tiers) == 0 {
			return fmt.Errorf("%w: direct meter table requires tiers", ErrInvalidRateTable)
		}
		if rt.FlatAmount != 0 {
			return fmt.Errorf("%w: direct meter table must not carry a flat amount", ErrInvalidRateTable)
		}
		return validateTiers(rt.Tiers)
	case MethodRUBS:
		if len(rt.Tiers) != 0 || rt.FlatAmount != 0 {
			return fmt.Errorf("%w: rubs table must not carry tiers or a flat amount", ErrInvalidRateTable)
		}
		if _, ok := NormalizeAllocationBasis(string(rt.Basis)); !ok {
			return fmt.Errorf("%w: rubs table requires an allocation basis", ErrInvalidRateTable)
		}
		return nil
	case MethodFlatFee:
		if rt.FlatAmount <= 0 {
			return fmt.Errorf("%w: flat fee table requires a positive flat amount", ErrInvalidRateTable)
		}
		if len(rt.Tiers) != 0 {
			return fmt.Errorf("%w: flat fee table must not carry tiers", ErrInvalidRateTable)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidRateTable, rt.Method)
	}
}

func validateTiers(tiers []RateTier) error {
	if tiers[0].MinUsage != 0 {
		return fmt.Errorf("%w: first tier must start at zero", ErrInvalidRateTable)
	}
	for i, tier := range tiers {
		if tier.Rate < 0 {
			return fmt.Errorf("%w: tier %d has negative rate", ErrInvalidRateTable, i)
		}
		if tier.MaxUsage == nil {
			if i != len(tiers)-1 {
				return fmt.Errorf("%w: only the last tier may be unbounded", ErrInvalidRateTable)
			}
			continue
		}
		if *tier.MaxUsage <= tier.MinUsage {
			return fmt.Errorf("%w: tier %d is empty or inverted", ErrInvalidRateTable, i)
		}
		if i < len(tiers)-1 && tiers[i+1].MinUsage != *tier.MaxUsage {
			return fmt.Errorf("%w: tier %d does not continue where tier %d ends", ErrInvalidRateTable, i+1, i)
		}
	}
	return nil
}
