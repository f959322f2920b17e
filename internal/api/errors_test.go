package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/isocheck/internal/api/shared"
	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/harness"
	"github.com/phrazzld/isocheck/internal/scenarios"
	"github.com/phrazzld/isocheck/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown scenario", fmt.Errorf("%w: x", scenarios.ErrUnknownScenario), http.StatusNotFound},
		{"unknown level", domain.ErrUnknownIsolationLevel, http.StatusBadRequest},
		{"malformed", &harness.MalformedScenarioError{}, http.StatusUnprocessableEntity},
		{"busy", ErrRunInProgress, http.StatusConflict},
		{"signal timeout", &harness.SignalTimeoutError{}, http.StatusGatewayTimeout},
		{"run timeout", &harness.RunTimeoutError{}, http.StatusGatewayTimeout},
		{"connection", fmt.Errorf("reset: %w", store.ErrConnection), http.StatusServiceUnavailable},
		{"query", store.ErrQuery, http.StatusInternalServerError},
		{"panic", harness.ErrWorkerPanic, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(errors.New("postgres://u:p@h/db")))
	assert.Equal(t, "A statement of the scenario failed",
		GetSafeErrorMessage(store.NewStoreError("write", "acct", "relation harness_rows does not exist", store.ErrQuery)))
	assert.Equal(t, "Malformed scenario", GetSafeErrorMessage(harness.ErrMalformedScenario))
}

func TestSanitizeValidationError(t *testing.T) {
	err := shared.ValidateRequest(RunScenarioRequest{})
	assert.Equal(t, "Invalid isolation: required field", SanitizeValidationError(err))
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("x")))
}
