// Package logger provides structured logging functionality for the harness.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, a human-readable text mode for interactive use, and a
// CI mode that stamps every record with the CI job metadata. Run-scoped loggers travel
// through context.Context (WithLogger/FromContext).
package logger
