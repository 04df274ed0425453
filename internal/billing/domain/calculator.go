package billing

import "fmt"

// UsageInputs is the tagged union of calculator inputs. Exactly one variant
// is populated, matching the rate table's method.
type UsageInputs struct {
	Meter *MeterUsage
	RUBS  *RUBSUsage
}

// ComputeCharge dispatches to the calculator for the table's method. The set
// of billing methods is closed; an unknown method is a configuration error.
func ComputeCharge(in UsageInputs, table *RateTable) (UtilityCharge, error) {
	if table == nil {
		return UtilityCharge{}, ErrInvalidRateTable
	}
	switch table.Method {
	case MethodDirectMeter:
		if in.Meter == nil {
			return UtilityCharge{}, fmt.Errorf("%w: direct meter table requires meter readings", ErrInvalidRateTable)
		}
		return ComputeTieredCharge(*in.Meter, table)
	case MethodRUBS:
		if in.RUBS == nil {
			return UtilityCharge{}, fmt.Errorf("%w: rubs table requires allocation inputs", ErrInvalidRateTable)
		}
		return ComputeRUBSCharge(*in.RUBS, table)
	case MethodFlatFee:
		return ComputeFlatFeeCharge(table)
	default:
		return UtilityCharge{}, &ConfigurationError{
			ParkID:      table.ParkID,
			UtilityType: table.UtilityType,
			Reason:      fmt.Sprintf("unknown billing method %q", table.Method),
		}
	}
}
