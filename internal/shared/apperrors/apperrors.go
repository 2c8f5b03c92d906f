package apperrors

import (
	"errors"
	"net/http"

	"ride-dispatch/internal/dispatch/domain"
)

// StatusCode maps a domain error to the HTTP status reported to callers.
// Conflict and Forbidden are expected outcomes of the acceptance race and
// must reach the client as-is, never collapsed into a 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRideTaken), errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidVehicleClass),
		errors.Is(err, domain.ErrInvalidCoordinates):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the short machine-readable reason used in WS error payloads.
func Kind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not-found"
	case errors.Is(err, domain.ErrRideTaken):
		return "already-taken"
	case errors.Is(err, domain.ErrInvalidStatus):
		return "invalid-state"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidVehicleClass),
		errors.Is(err, domain.ErrInvalidCoordinates):
		return "validation"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
