package masterdata

import "errors"

var (
	// ErrNilLot is returned when persisting a nil lot.
	ErrNilLot = errors.New("masterdata: nil lot")
	// ErrLotNotFound is returned when a lot does not exist.
	ErrLotNotFound = errors.New("masterdata: lot not found")
	// ErrNilPark is returned when persisting a nil park.
	ErrNilPark = errors.New("masterdata: nil park")
	// ErrParkNotFound is returned when a park does not exist.
	ErrParkNotFound = errors.New("masterdata: park not found")
)
