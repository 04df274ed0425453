package metering

import "errors"

var (
	// ErrEmptyMeterID is returned when a meter id is empty.
	ErrEmptyMeterID = errors.New("metering: empty meter id")
	// ErrNegativeValue is returned when a reading value is negative.
	ErrNegativeValue = errors.New("metering: negative reading value")
	// ErrInvalidTimestamp is returned when a reading timestamp is zero.
	ErrInvalidTimestamp = errors.New("metering: invalid reading timestamp")
	// ErrNoReading is returned when no reading exists for the requested time.
	ErrNoReading = errors.New("metering: no reading available")
)
