package main

import (
	"errors"
	"fmt"
)

// Exit codes of the isocheck binary.
const (
	ExitSuccess    = 0 // every verdict matched its expectation
	ExitUnexpected = 1 // at least one verdict did not
	ExitError      = 2 // no verdict: bad usage, malformed scenario, timeout or unreachable store
)

// exitError carries an exit code out of a command.
type exitError struct {
	Code    int
	Message string
	Err     error
}

func (e *exitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *exitError) Unwrap() error {
	return e.Err
}

func newExitError(code int, message string) *exitError {
	return &exitError{Code: code, Message: message}
}

func wrapExitError(code int, message string, err error) *exitError {
	return &exitError{Code: code, Message: message, Err: err}
}

// exitCode extracts the exit code from err. Errors that are not exitErrors
// come from flag parsing or setup and map to ExitError, since 1 is reserved
// for unexpected verdicts.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitError
}
