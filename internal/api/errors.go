package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/pixelpanel/internal/auth"
	"github.com/nerrad567/pixelpanel/internal/connection"
	"github.com/nerrad567/pixelpanel/internal/panel"
	"github.com/nerrad567/pixelpanel/internal/store"
	"github.com/nerrad567/pixelpanel/internal/validation"
)

// Error represents a structured error response.
type Error struct {
	Status  int                 `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeUnauthorized    = "unauthorised"
	ErrCodeConflict        = "conflict"
	ErrCodeInternal        = "internal_error"
	ErrCodeValidation      = "validation_error"
	ErrCodeTooManyRequests = "too_many_requests"
	ErrCodeDeviceOffline   = "device_offline"
	ErrCodeConnectionLost  = "connection_lost"
	ErrCodeDeviceTimeout   = "device_timeout"
	ErrCodeDeviceError     = "device_error"
	ErrCodeClientClosed    = "client_closed_request"
	ErrCodeNoDeviceConfig  = "no_device_config"
)

// statusClientClosedRequest is nginx's non-standard code for a request the
// client abandoned before the response was written.
const statusClientClosedRequest = 499

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pixelpanel"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeValidationError writes a 422 response listing every failing field.
func writeValidationError(w http.ResponseWriter, verr *validation.Error) {
	writeJSON(w, http.StatusUnprocessableEntity, Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    ErrCodeValidation,
		Message: "config validation failed",
		Fields:  verr.Fields,
	})
}

// writeDomainError maps a service or connection error to its HTTP status.
// Unknown errors from the device link (dial failures) are 502.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, panel.ErrNoChanges), errors.Is(err, store.ErrInvalidPayload):
		writeBadRequest(w, err.Error())
	case errors.Is(err, store.ErrNoConfig):
		writeError(w, http.StatusConflict, ErrCodeNoDeviceConfig, "device has not reported its configuration yet")
	case errors.Is(err, panel.ErrNoProposal):
		writeError(w, http.StatusConflict, ErrCodeConflict, "no pending proposal")
	case errors.Is(err, connection.ErrNotConnected), errors.Is(err, connection.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeDeviceOffline, "device is not connected")
	case errors.Is(err, connection.ErrConnectionLost):
		writeError(w, http.StatusBadGateway, ErrCodeConnectionLost, "connection to device lost")
	case errors.Is(err, context.Canceled):
		writeError(w, statusClientClosedRequest, ErrCodeClientClosed, "request cancelled")
	case errors.Is(err, connection.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeDeviceTimeout, "device did not confirm in time")
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many failed login attempts")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeDeviceError, err.Error())
	}
}
