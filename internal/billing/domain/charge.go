package billing

import (
	"encoding/json"
	"math"
)

// UtilityCharge is one line item within a bill. Usage is nil for flat-fee
// charges where no quantity applies. Breakdown is a method-specific
// explanation, opaque to the bill assembler.
type UtilityCharge struct {
	UtilityType UtilityType     `json:"utility_type"`
	Method      BillingMethod   `json:"method"`
	Usage       *float64        `json:"usage,omitempty"`
	Rate        float64         `json:"rate"`
	Amount      float64         `json:"amount"`
	Breakdown   json.RawMessage `json:"breakdown,omitempty"`
}

// TierConsumption records how much usage one tier absorbed.
type TierConsumption struct {
	MinUsage float64  `json:"min_usage"`
	MaxUsage *float64 `json:"max_usage,omitempty"`
	Rate     float64  `json:"rate"`
	Units    float64  `json:"units"`
	Amount   float64  `json:"amount"`
	Overflow bool     `json:"overflow,omitempty"`
}

// TieredBreakdown explains a direct-meter charge.
type TieredBreakdown struct {
	PreviousReading float64           `json:"previous_reading"`
	CurrentReading  float64           `json:"current_reading"`
	MeterReset      bool              `json:"meter_reset,omitempty"`
	Tiers           []TierConsumption `json:"tiers"`
}

// RUBSBreakdown explains an allocation charge.
type RUBSBreakdown struct {
	Basis            AllocationBasis `json:"basis"`
	AllocationFactor float64         `json:"allocation_factor"`
	LotShare         float64         `json:"lot_share"`
	BasisTotal       float64         `json:"basis_total"`
	TotalParkUsage   float64         `json:"total_park_usage"`
	TotalParkCost    float64         `json:"total_park_cost"`
	EligibleLots     int             `json:"eligible_lots"`
}

// FlatFeeBreakdown explains a flat-fee charge.
type FlatFeeBreakdown struct {
	FlatAmount float64 `json:"flat_amount"`
}

// RoundCents rounds a monetary amount to two decimal places.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func marshalBreakdown(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func usageValue(v float64) *float64 { return &v }
