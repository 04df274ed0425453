package billing

import "strings"

// UtilityType identifies a metered or allocated utility.
type UtilityType string

const (
	UtilityWater    UtilityType = "water"
	UtilityElectric UtilityType = "electric"
	UtilityGas      UtilityType = "gas"
	UtilitySewer    UtilityType = "sewer"
)

// NormalizeUtilityType validates a utility type string, folding case to the
// canonical lowercase form.
func NormalizeUtilityType(value string) (UtilityType, bool) {
	normalized := UtilityType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case UtilityWater, UtilityElectric, UtilityGas, UtilitySewer:
		return normalized, true
	default:
		return "", false
	}
}

// BillingMethod selects how a utility is priced for a park.
type BillingMethod string

const (
	MethodDirectMeter BillingMethod = "direct_meter"
	MethodRUBS        BillingMethod = "rubs"
	MethodFlatFee     BillingMethod = "flat_fee"
)

// NormalizeBillingMethod validates a billing method string, folding case to
// the canonical lowercase form.
func NormalizeBillingMethod(value string) (BillingMethod, bool) {
	normalized := BillingMethod(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MethodDirectMeter, MethodRUBS, MethodFlatFee:
		return normalized, true
	default:
		return "", false
	}
}

// AllocationBasis selects the RUBS share computation.
type AllocationBasis string

const (
	BasisEqualSplit    AllocationBasis = "equal_split"
	BasisOccupancy     AllocationBasis = "occupancy"
	BasisSquareFootage AllocationBasis = "square_footage"
)

// NormalizeAllocationBasis validates an allocation basis string, folding case
// to the canonical lowercase form.
func NormalizeAllocationBasis(value string) (AllocationBasis, bool) {
	normalized := AllocationBasis(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case BasisEqualSplit, BasisOccupancy, BasisSquareFootage:
		return normalized, true
	default:
		return "", false
	}
}
