// Package handlers holds helpers shared by the HTTP handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/de-tools/policy-atlas/pkg/services/audit"
	"github.com/de-tools/policy-atlas/pkg/services/reports"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/rs/zerolog"
)

// ErrPayloadTooLarge marks a request body that exceeded its size limit.
var ErrPayloadTooLarge = errors.New("payload too large")

// StatusFor maps a service error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, audit.ErrInvalidInput),
		errors.Is(err, rules.ErrInvalidPolicy),
		errors.Is(err, rules.ErrUnsupportedProvider):
		return http.StatusBadRequest
	case errors.Is(err, reports.ErrNotFound),
		errors.Is(err, rules.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, reports.ErrRemediationDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError logs err and answers with the mapped status. Server errors are
// not echoed to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := StatusFor(err)
	logger := zerolog.Ctx(r.Context())

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg(msg)
		http.Error(w, msg, status)
		return
	}

	logger.Warn().Err(err).Int("status", status).Msg(msg)
	http.Error(w, err.Error(), status)
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
