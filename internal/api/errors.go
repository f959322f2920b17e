package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/harness"
	"github.com/phrazzld/isocheck/internal/scenarios"
	"github.com/phrazzld/isocheck/internal/store"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still executing. Runs share the store's rows and must not overlap.
var ErrRunInProgress = errors.New("another run is in progress")

// MapErrorToStatusCode maps harness and store errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, scenarios.ErrUnknownScenario):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownIsolationLevel):
		return http.StatusBadRequest
	case errors.Is(err, harness.ErrMalformedScenario):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, harness.ErrSignalTimeout),
		errors.Is(err, harness.ErrRunTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, store.ErrConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err that never
// includes store details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, scenarios.ErrUnknownScenario):
		return "Scenario not found"
	case errors.Is(err, domain.ErrUnknownIsolationLevel):
		return "Unknown isolation level"
	case errors.Is(err, harness.ErrMalformedScenario):
		var malformed *harness.MalformedScenarioError
		if errors.As(err, &malformed) {
			return "Malformed scenario: " + strings.Join(malformed.Problems, "; ")
		}
		return "Malformed scenario"
	case errors.Is(err, ErrRunInProgress):
		return "Another run is in progress"
	case errors.Is(err, harness.ErrSignalTimeout):
		return "A worker timed out waiting for a signal"
	case errors.Is(err, harness.ErrRunTimeout):
		return "The run did not finish in time"
	case errors.Is(err, store.ErrConnection):
		return "The database is unavailable"
	case errors.Is(err, store.ErrQuery):
		return "A statement of the scenario failed"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a short message
// naming the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
