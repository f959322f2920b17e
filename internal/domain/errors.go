// Package domain defines the core harness value types and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain value fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownIsolationLevel is returned when an isolation level name cannot be parsed.
	ErrUnknownIsolationLevel = errors.New("unknown isolation level")

	// ErrInvalidTarget is returned when a read target does not name a row or group.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidMutation is returned when a write does not name a row or carries an unknown kind.
	ErrInvalidMutation = errors.New("invalid mutation")
)
