package report

import (
	"context"
	"log/slog"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/platform/logger"
)

// LogSink logs each result. Failed results are logged at warn level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses the logger carried by the
// context of each Emit call.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, result *domain.VerificationResult) error {
	log := s.logger
	if log == nil {
		log = logger.FromContext(ctx)
	}

	level := slog.LevelInfo
	if !result.Passed {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "verification result",
		"run_id", result.RunID.String(),
		"scenario", result.Scenario,
		"isolation", result.Isolation.Slug(),
		"effective_isolation", result.EffectiveIsolation.Slug(),
		"verdict", result.Verdict,
		"expected", result.Expected,
		"status", result.Status(),
		"observations", len(result.Log),
		"duration_ms", result.Duration.Milliseconds(),
		"explanation", result.Explanation,
	)
	return nil
}
