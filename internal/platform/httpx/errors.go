// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Services wrap these so handlers can
// map a failure to a status code without inspecting message text.
var (
	// ErrValidation marks malformed input or a failed business invariant.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing referenced entity.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden marks a missing approver authority.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks a state-machine guard violation: the entity exists but
	// is in a state that rejects the operation (stale-state race, not bad input).
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized marks a missing or unresolved actor identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
