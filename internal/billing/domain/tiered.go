package billing

import "fmt"

// MeterUsage carries the reading pair for a direct-meter charge.
// Reset marks an explicit meter rollover or replacement recorded by the
// capture collaborator; in that case CurrentReading is billed from zero.
type MeterUsage struct {
	MeterID         string
	PreviousReading float64
	CurrentReading  float64
	Reset           bool
}

// ComputeTieredCharge turns a reading pair into a charge by walking the
// table's tiers in ascending order. The walk is positioned by cumulative
// reading: a tier only bills the slice of usage that falls inside its
// [min, max) band, so a lot already past tier 1 pays tier 2 prices from the
// first unit. Usage beyond the configured tier capacity is billed at the
// last tier's rate rather than dropped. A reading decrease without a reset
// flag fails with MeterAnomalyError; it never bills a negative amount.
func ComputeTieredCharge(in MeterUsage, table *RateTable) (UtilityCharge, error) {
	if table == nil || table.Method != MethodDirectMeter {
		return UtilityCharge{}, fmt.Errorf("%w: tiered calculator requires a direct meter table", ErrInvalidRateTable)
	}
	if err := table.Validate(); err != nil {
		return UtilityCharge{}, err
	}
	if in.PreviousReading < 0 || in.CurrentReading < 0 {
		return UtilityCharge{}, &MeterAnomalyError{MeterID: in.MeterID, Previous: in.PreviousReading, Current: in.CurrentReading}
	}

	previous := in.PreviousReading
	if in.Reset {
		previous = 0
	}
	if in.CurrentReading < previous {
		return UtilityCharge{}, &MeterAnomalyError{MeterID: in.MeterID, Previous: in.PreviousReading, Current: in.CurrentReading}
	}

	usage := in.CurrentReading - previous
	var amount float64
	var covered float64
	var consumed []TierConsumption

	for _, tier := range table.Tiers {
		lo := tier.MinUsage
		if previous > lo {
			lo = previous
		}
		hi := in.CurrentReading
		if tier.MaxUsage != nil && *tier.MaxUsage < hi {
			hi = *tier.MaxUsage
		}
		units := hi - lo
		if units <= 0 {
			continue
		}
		tierAmount := units * tier.Rate
		amount += tierAmount
		covered += units
		consumed = append(consumed, TierConsumption{
			MinUsage: tier.MinUsage,
			MaxUsage: tier.MaxUsage,
			Rate:     tier.Rate,
			Units:    units,
			Amount:   RoundCents(tierAmount),
		})
	}
	remaining := usage - covered

	// Tiers misconfigured without an unbounded tail: the residual is charged
	// at the last tier's rate, never dropped.
	if remaining > 0 {
		last := table.Tiers[len(table.Tiers)-1]
		overflowAmount := remaining * last.Rate
		amount += overflowAmount
		consumed = append(consumed, TierConsumption{
			MinUsage: last.MinUsage,
			MaxUsage: last.MaxUsage,
			Rate:     last.Rate,
			Units:    remaining,
			Amount:   RoundCents(overflowAmount),
			Overflow: true,
		})
	}

	rate := table.BaseRate
	if rate == 0 && usage > 0 {
		rate = amount / usage
	}

	return UtilityCharge{
		UtilityType: table.UtilityType,
		Method:      MethodDirectMeter,
		Usage:       usageValue(usage),
		Rate:        rate,
		Amount:      RoundCents(amount),
		Breakdown: marshalBreakdown(TieredBreakdown{
			PreviousReading: in.PreviousReading,
			CurrentReading:  in.CurrentReading,
			MeterReset:      in.Reset,
			Tiers:           consumed,
		}),
	}, nil
}
