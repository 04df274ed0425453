package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyLotID is returned when a lot id is empty.
	ErrEmptyLotID = errors.New("billing: empty lot id")
	// ErrEmptyParkID is returned when a park id is empty.
	ErrEmptyParkID = errors.New("billing: empty park id")
	// ErrInvalidPeriod is returned when a billing period is malformed.
	ErrInvalidPeriod = errors.New("billing: invalid billing period")
	// ErrInvalidRateTable is returned when a rate table fails validation.
	ErrInvalidRateTable = errors.New("billing: invalid rate table")
	// ErrInvalidStatusTransition is returned on a forbidden bill status change.
	ErrInvalidStatusTransition = errors.New("billing: invalid status transition")
	// ErrBillNotFound is returned when a bill does not exist.
	ErrBillNotFound = errors.New("billing: bill not found")
	// ErrNilBill is returned when persisting a nil bill.
	ErrNilBill = errors.New("billing: nil bill")
)

// ConfigurationError indicates missing or unusable billing configuration.
// It is surfaced to the operator and never defaulted silently.
type ConfigurationError struct {
	ParkID      string
	UtilityType UtilityType
	Reason      string
}

func (e *ConfigurationError) Error() string {
	if e.UtilityType == "" {
		return fmt.Sprintf("billing: configuration error for park %s: %s", e.ParkID, e.Reason)
	}
	return fmt.Sprintf("billing: configuration error for park %s utility %s: %s", e.ParkID, e.UtilityType, e.Reason)
}

// MeterAnomalyError indicates a meter reading decreased without a recorded reset.
// The affected lot is excluded from the billing run rather than guessed at.
type MeterAnomalyError struct {
	MeterID  string
	Previous float64
	Current  float64
}

func (e *MeterAnomalyError) Error() string {
	return fmt.Sprintf("billing: meter anomaly on %s: reading decreased from %.3f to %.3f without reset", e.MeterID, e.Previous, e.Current)
}

// DuplicateBillError indicates a bill already exists for the lot and period.
// Regeneration requires voiding the prior bill first.
type DuplicateBillError struct {
	LotID      string
	PeriodKey  string
	ExistingID string
}

func (e *DuplicateBillError) Error() string {
	return fmt.Sprintf("billing: bill already exists for lot %s period %s (bill %s)", e.LotID, e.PeriodKey, e.ExistingID)
}
