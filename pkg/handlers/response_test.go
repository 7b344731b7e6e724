package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/de-tools/policy-atlas/pkg/services/audit"
	"github.com/de-tools/policy-atlas/pkg/services/reports"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid input", fmt.Errorf("%w: bad plan", audit.ErrInvalidInput), http.StatusBadRequest},
		{"invalid policy", rules.ErrInvalidPolicy, http.StatusBadRequest},
		{"unsupported provider", rules.ErrUnsupportedProvider, http.StatusBadRequest},
		{"report not found", reports.ErrNotFound, http.StatusNotFound},
		{"rule not found", rules.ErrNotFound, http.StatusNotFound},
		{"payload too large", fmt.Errorf("%w: plan exceeds 10 bytes", ErrPayloadTooLarge), http.StatusRequestEntityTooLarge},
		{"remediation disabled", reports.ErrRemediationDisabled, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFor(tt.err))
		})
	}
}
