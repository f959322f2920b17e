package api

import (
	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/harness"
)

// RunScenarioRequest is the body of POST /scenarios/{name}/runs.
type RunScenarioRequest struct {
	// Isolation accepts any spelling ParseIsolationLevel understands.
	Isolation string `json:"isolation" validate:"required"`
}

// ScenarioResponse describes one catalog entry.
type ScenarioResponse struct {
	Name        string                    `json:"name"`
	Anomaly     string                    `json:"anomaly"`
	Description string                    `json:"description"`
	Workers     []string                  `json:"workers"`
	Expected    map[string]domain.Verdict `json:"expected"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// ScenarioToResponse describes sc with its expected verdict at every level.
func ScenarioToResponse(sc *harness.Scenario) ScenarioResponse {
	expected := make(map[string]domain.Verdict, len(domain.AllIsolationLevels))
	for _, level := range domain.AllIsolationLevels {
		expected[level.Slug()] = sc.Expect(level)
	}
	return ScenarioResponse{
		Name:        sc.Name,
		Anomaly:     sc.Anomaly,
		Description: sc.Description,
		Workers:     sc.WorkerIDs(),
		Expected:    expected,
	}
}
