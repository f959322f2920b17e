package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ciEnvVars maps the environment variables of common CI systems to the log
// attribute they are reported under.
var ciEnvVars = map[string]string{
	"GITHUB_RUN_ID":      "ci_run_id",
	"GITHUB_SHA":         "ci_commit",
	"GITHUB_REF_NAME":    "ci_ref",
	"GITHUB_JOB":         "ci_job",
	"CI_PIPELINE_ID":     "ci_run_id",
	"CI_COMMIT_SHA":      "ci_commit",
	"CI_JOB_NAME":        "ci_job",
	"BUILDKITE_BUILD_ID": "ci_run_id",
}

// isInCIEnvironment reports whether the process runs under a CI system.
func isInCIEnvironment() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" || os.Getenv("GITLAB_CI") != ""
}

// getCIMetadata collects the CI attributes present in the environment.
func getCIMetadata() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(ciEnvVars))
	seen := make(map[string]bool)
	for env, key := range ciEnvVars {
		value := os.Getenv(env)
		if value == "" || seen[key] {
			continue
		}
		seen[key] = true
		attrs = append(attrs, slog.String(key, value))
	}
	return attrs
}

// CIHandler is a slog.Handler that writes JSON records stamped with the CI job
// metadata, so harness runs from different pipeline jobs can be told apart in
// aggregated logs.
type CIHandler struct {
	handler slog.Handler
}

// NewCIHandler creates a CIHandler writing JSON to out.
func NewCIHandler(out io.Writer, opts *slog.HandlerOptions) *CIHandler {
	var handlerOpts slog.HandlerOptions
	if opts != nil {
		handlerOpts = *opts
	}

	base := slog.NewJSONHandler(out, &handlerOpts).WithAttrs(getCIMetadata())
	return &CIHandler{handler: base}
}

// Enabled implements the slog.Handler interface.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup implements the slog.Handler interface.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{handler: h.handler.WithGroup(name)}
}

// Handle implements the slog.Handler interface.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	enhanced := record.Clone()
	enhanced.AddAttrs(slog.Int64("timestamp_nano", enhanced.Time.UnixNano()))
	return h.handler.Handle(ctx, enhanced)
}
