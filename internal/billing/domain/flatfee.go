package billing

import "fmt"

// ComputeFlatFeeCharge prices a utility at the table's flat amount,
// regardless of metering. Usage is absent on the resulting charge.
func ComputeFlatFeeCharge(table *RateTable) (UtilityCharge, error) {
	if table == nil || table.Method != MethodFlatFee {
		return UtilityCharge{}, fmt.Errorf("%w: flat fee calculator requires a flat fee table", ErrInvalidRateTable)
	}
	if err := table.Validate(); err != nil {
		return UtilityCharge{}, err
	}
	return UtilityCharge{
		UtilityType: table.UtilityType,
		Method:      MethodFlatFee,
		Rate:        table.FlatAmount,
		Amount:      RoundCents(table.FlatAmount),
		Breakdown:   marshalBreakdown(FlatFeeBreakdown{FlatAmount: table.FlatAmount}),
	}, nil
}
