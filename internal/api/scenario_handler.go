package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/isocheck/internal/api/shared"
	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/harness"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/report"
	"github.com/phrazzld/isocheck/internal/scenarios"
)

// ScenarioRunner runs one scenario at one level.
type ScenarioRunner interface {
	Run(ctx context.Context, sc *harness.Scenario, level domain.IsolationLevel) (*domain.VerificationResult, error)
}

var (
	_ ScenarioRunner = (*harness.Runner)(nil)
	_ ScenarioRunner = (*harness.RetryingRunner)(nil)
)

// ScenarioHandler serves the scenario catalog.
type ScenarioHandler struct {
	runner    ScenarioRunner
	sink      report.Sink
	storeName string
	logger    *slog.Logger

	// running serializes runs; concurrent runs would reset each other's rows.
	running sync.Mutex
}

// NewScenarioHandler creates a ScenarioHandler. sink may be nil; storeName is
// reported by the health endpoint.
func NewScenarioHandler(runner ScenarioRunner, sink report.Sink, storeName string, log *slog.Logger) *ScenarioHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ScenarioHandler{
		runner:    runner,
		sink:      sink,
		storeName: storeName,
		logger:    log.With("component", "scenario_handler"),
	}
}

// Health handles GET /health.
func (h *ScenarioHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Store: h.storeName})
}

// ListScenarios handles GET /scenarios.
func (h *ScenarioHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	all := scenarios.All()
	resp := make([]ScenarioResponse, len(all))
	for i, sc := range all {
		resp[i] = ScenarioToResponse(sc)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetScenario handles GET /scenarios/{name}.
func (h *ScenarioHandler) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := scenarios.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ScenarioToResponse(sc))
}

// RunScenario handles POST /scenarios/{name}/runs. The response is the
// VerificationResult, whether the run passed or failed; harness errors get
// an error status.
func (h *ScenarioHandler) RunScenario(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sc, err := scenarios.Lookup(name)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var req RunScenarioRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}
	level, err := domain.ParseIsolationLevel(req.Isolation)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	if !h.running.TryLock() {
		HandleAPIError(w, r, ErrRunInProgress)
		return
	}
	defer h.running.Unlock()

	ctx, log := logger.With(r.Context(), "scenario", sc.Name, "isolation", level.Slug())
	result, err := h.runner.Run(ctx, sc, level)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	if h.sink != nil {
		if err := h.sink.Emit(ctx, result); err != nil {
			log.Warn("failed to emit result", "error", err)
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// HandleAPIError writes the status and safe message for err.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
