package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openav/matrix-gate/internal/auth"
	"github.com/openav/matrix-gate/internal/matrix"
)

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeDomainError maps domain errors onto HTTP responses.
//
// Auth failures keep their messages deliberately vague; the device
// errors carry enough detail for an operator to act on.
func writeDomainError(w http.ResponseWriter, err error) {
	var lockErr *auth.LockoutError

	switch {
	case errors.As(err, &lockErr):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(lockErr.RetryAfter.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "locked", "too many failed attempts, try again later")
	case errors.Is(err, auth.ErrLocked):
		writeError(w, http.StatusTooManyRequests, "locked", "too many failed attempts, try again later")
	case errors.Is(err, auth.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid username or password format")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, auth.ErrIPNotAllowed):
		writeError(w, http.StatusForbidden, "ip_not_allowed", "client address not allowed")
	case errors.Is(err, auth.ErrSessionInvalid):
		writeError(w, http.StatusUnauthorized, "session_invalid", "invalid or expired session")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
	case errors.Is(err, matrix.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, matrix.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, "invalid_command", err.Error())
	case errors.Is(err, matrix.ErrNotConnected):
		writeError(w, http.StatusInternalServerError, "not_connected", err.Error())
	case errors.Is(err, matrix.ErrRetriesExhausted),
		errors.Is(err, matrix.ErrEmptyResponse),
		errors.Is(err, matrix.ErrLinkClosed):
		writeError(w, http.StatusInternalServerError, "device_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
