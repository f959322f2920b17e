package report

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/isocheck/internal/domain"
)

// Sink consumes finished verification results.
type Sink interface {
	Emit(ctx context.Context, result *domain.VerificationResult) error
}

// Emitter dispatches each result to every registered sink.
type Emitter struct {
	sinks  []Sink
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewEmitter creates an Emitter with the given sinks.
func NewEmitter(logger *slog.Logger, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		sinks:  sinks,
		logger: logger.With("component", "report_emitter"),
	}
}

// Register adds a sink.
func (e *Emitter) Register(sink Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// Emit sends result to all sinks. A failing sink does not stop the others;
// the first error is returned.
func (e *Emitter) Emit(ctx context.Context, result *domain.VerificationResult) error {
	e.mu.RLock()
	sinks := make([]Sink, len(e.sinks))
	copy(sinks, e.sinks)
	e.mu.RUnlock()

	if len(sinks) == 0 {
		e.logger.Warn("no sinks registered for result", "run_id", result.RunID)
		return nil
	}

	var firstErr error
	for i, sink := range sinks {
		if err := sink.Emit(ctx, result); err != nil {
			e.logger.Error("sink failed to emit result",
				"error", err,
				"sink_index", i,
				"run_id", result.RunID,
				"scenario", result.Scenario)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
