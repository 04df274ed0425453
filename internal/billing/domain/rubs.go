package billing

import "fmt"

// AllocationEpsilon bounds the floating-point drift tolerated when checking
// that allocation factors across a park sum to one.
const AllocationEpsilon = 1e-9

// AllocationLot is a lot's share inputs for RUBS allocation.
type AllocationLot struct {
	LotID         string
	Occupants     int
	SquareFootage float64
}

// RUBSUsage carries the park-wide inputs for an allocation charge.
type RUBSUsage struct {
	TotalParkUsage float64
	TotalParkCost  float64
	Lot            AllocationLot
	AllLots        []AllocationLot
}

// AllocationFactor computes a lot's share of the chosen basis across the
// eligible lots. It fails with ConfigurationError when the basis denominator
// is zero; the calculator never divides by zero.
func AllocationFactor(basis AllocationBasis, lot AllocationLot, allLots []AllocationLot) (factor, share, total float64, err error) {
	if len(allLots) == 0 {
		return 0, 0, 0, &ConfigurationError{Reason: "no lots eligible for allocation"}
	}
	switch basis {
	case BasisEqualSplit:
		return 1 / float64(len(allLots)), 1, float64(len(allLots)), nil
	case BasisOccupancy:
		var sum float64
		for _, l := range allLots {
			sum += float64(l.Occupants)
		}
		if sum == 0 {
			return 0, 0, 0, &ConfigurationError{Reason: "occupancy basis selected but total occupants is zero"}
		}
		return float64(lot.Occupants) / sum, float64(lot.Occupants), sum, nil
	case BasisSquareFootage:
		var sum float64
		for _, l := range allLots {
			sum += l.SquareFootage
		}
		if sum == 0 {
			return 0, 0, 0, &ConfigurationError{Reason: "square footage basis selected but total square footage is zero"}
		}
		return lot.SquareFootage / sum, lot.SquareFootage, sum, nil
	default:
		return 0, 0, 0, &ConfigurationError{Reason: fmt.Sprintf("unknown allocation basis %q", basis)}
	}
}

// ComputeRUBSCharge allocates a share of the park's total utility cost to a
// lot. The estimated usage is the same share of the park's total usage.
func ComputeRUBSCharge(in RUBSUsage, table *RateTable) (UtilityCharge, error) {
	if table == nil || table.Method != MethodRUBS {
		return UtilityCharge{}, fmt.Errorf("%w: rubs calculator requires a rubs table", ErrInvalidRateTable)
	}
	if err := table.Validate(); err != nil {
		return UtilityCharge{}, err
	}
	if in.TotalParkUsage < 0 || in.TotalParkCost < 0 {
		return UtilityCharge{}, &ConfigurationError{
			ParkID:      table.ParkID,
			UtilityType: table.UtilityType,
			Reason:      "negative park usage or cost",
		}
	}

	factor, share, total, err := AllocationFactor(table.Basis, in.Lot, in.AllLots)
	if err != nil {
		if cfg, ok := err.(*ConfigurationError); ok {
			cfg.ParkID = table.ParkID
			cfg.UtilityType = table.UtilityType
		}
		return UtilityCharge{}, err
	}

	amount := in.TotalParkCost * factor
	estimated := in.TotalParkUsage * factor

	var rate float64
	if in.TotalParkUsage > 0 {
		rate = in.TotalParkCost / in.TotalParkUsage
	}

	return UtilityCharge{
		UtilityType: table.UtilityType,
		Method:      MethodRUBS,
		Usage:       usageValue(estimated),
		Rate:        rate,
		Amount:      RoundCents(amount),
		Breakdown: marshalBreakdown(RUBSBreakdown{
			Basis:            table.Basis,
			AllocationFactor: factor,
			LotShare:         share,
			BasisTotal:       total,
			TotalParkUsage:   in.TotalParkUsage,
			TotalParkCost:    in.TotalParkCost,
			EligibleLots:     len(in.AllLots),
		}),
	}, nil
}
