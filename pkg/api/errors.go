package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/failover"
	"meridian-hq/feedwatch/pkg/telemetry/logging"
)

// ErrorResponse is the JSON error envelope returned by every route.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// RequestID correlates the error with server logs.
	RequestID string `json:"requestId,omitempty"`
}

// Error code constants.
const (
	CodeInvalidJSON    = "invalid_json"
	CodeMissingField   = "missing_field"
	CodeInvalidValue   = "invalid_value"
	CodeUnknownRule    = "unknown_rule"
	CodeInvalidTarget  = "invalid_target"
	CodeNotImplemented = "not_implemented"
	CodeEventsDisabled = "events_disabled"
	CodeInternal       = "internal_error"
)

// WriteError writes an error envelope with the given status.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: logging.GetRequestID(r.Context()),
	}})
}

// writeFailoverError maps failover and event-store errors to HTTP statuses.
func writeFailoverError(w http.ResponseWriter, r *http.Request, err error) {
	var qerr *events.QueryError
	switch {
	case errors.Is(err, failover.ErrUnknownRule):
		WriteError(w, r, http.StatusNotFound, CodeUnknownRule, err.Error())
	case errors.Is(err, failover.ErrInvalidTarget):
		WriteError(w, r, http.StatusBadRequest, CodeInvalidTarget, err.Error())
	case errors.As(err, &qerr):
		WriteError(w, r, http.StatusBadRequest, CodeInvalidValue, qerr.Cause.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
