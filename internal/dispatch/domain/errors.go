package domain

import "errors"

var (
	ErrNotFound            = errors.New("ride not found")
	ErrRideTaken           = errors.New("ride already taken")
	ErrInvalidStatus       = errors.New("ride is not in the required state")
	ErrForbidden           = errors.New("driver is not assigned to this ride")
	ErrValidation          = errors.New("missing or invalid booking fields")
	ErrInvalidVehicleClass = errors.New("invalid vehicle class")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrUnavailable         = errors.New("durable store unavailable")
	ErrRideBusy            = errors.New("ride is already being processed")
)
