// Package transport contains the HTTP router, middleware chain, and the
// request handlers of the wizard API.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrUnauthorized:       http.StatusUnauthorized,
	model.ErrForbidden:          http.StatusForbidden,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrConflict:           http.StatusConflict,
	model.ErrValidationError:    http.StatusUnprocessableEntity,
	model.ErrInvalidTransition:  http.StatusUnprocessableEntity,
	model.ErrRateLimited:        http.StatusTooManyRequests,
	model.ErrInternalError:      http.StatusInternalServerError,
	model.ErrBackendUnavailable: http.StatusBadGateway,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
	model.ErrSessionNotFound:    http.StatusNotFound,
	model.ErrSessionNotActive:   http.StatusConflict,
	model.ErrStepIncomplete:     http.StatusUnprocessableEntity,
	model.ErrTransactionUnknown: http.StatusNotFound,
	model.ErrNoPendingAction:    http.StatusConflict,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as a JSON error envelope with the matching HTTP
// status code. A deadline becomes BACKEND_TIMEOUT; any other error that is
// not an *ErrorEnvelope is reported as a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, "", err)
}

// writeRequestError is WriteError with the trace ID of r's span attached.
func writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, observability.TraceIDFromContext(r.Context()), err)
}

func writeError(w http.ResponseWriter, traceID string, err error) {
	var ee *model.ErrorEnvelope
	switch {
	case errors.As(err, &ee):
		copied := *ee
		ee = &copied
	case errors.Is(err, context.DeadlineExceeded):
		ee = model.NewBackendTimeoutError()
	default:
		ee = model.NewInternalError()
	}
	if ee.TraceID == "" {
		ee.TraceID = traceID
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewBadRequestError(msg))
}
