package harness

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Harness error classes. Typed errors below unwrap to these so callers can use errors.Is.
var (
	// ErrMalformedScenario is returned before any worker starts when a scenario
	// cannot run as written.
	ErrMalformedScenario = errors.New("malformed scenario")

	// ErrSignalTimeout is returned when a worker waited too long for a signal.
	ErrSignalTimeout = errors.New("signal wait timed out")

	// ErrRunTimeout is returned when some worker never reached a terminal state
	// within the run timeout.
	ErrRunTimeout = errors.New("run timed out")

	// ErrIllegalState is returned when a transaction handle is used outside the
	// state that permits the operation.
	ErrIllegalState = errors.New("illegal transaction state")

	// ErrWorkerPanic is returned when a worker goroutine panicked.
	ErrWorkerPanic = errors.New("worker panicked")
)

// MalformedScenarioError lists every problem found while validating a scenario.
type MalformedScenarioError struct {
	Scenario string
	Problems []string
}

func (e *MalformedScenarioError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformedScenario, e.Scenario, strings.Join(e.Problems, "; "))
}

func (e *MalformedScenarioError) Unwrap() error {
	return ErrMalformedScenario
}

// SignalTimeoutError reports which worker gave up waiting for which signal.
type SignalTimeoutError struct {
	Worker  string
	Signal  string
	Timeout time.Duration
}

func (e *SignalTimeoutError) Error() string {
	return fmt.Sprintf("worker %s: signal %q not raised within %s", e.Worker, e.Signal, e.Timeout)
}

func (e *SignalTimeoutError) Unwrap() error {
	return ErrSignalTimeout
}

// RunTimeoutError names the workers that were still running when the run
// deadline expired.
type RunTimeoutError struct {
	Scenario string
	Pending  []string
	Timeout  time.Duration
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("scenario %q did not finish within %s (workers still running: %s)",
		e.Scenario, e.Timeout, strings.Join(e.Pending, ", "))
}

func (e *RunTimeoutError) Unwrap() error {
	return ErrRunTimeout
}

// WorkerError attaches the worker and step to a fatal error.
type WorkerError struct {
	Worker string
	Step   int
	Err    error
}

func (e *WorkerError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("worker %s: %v", e.Worker, e.Err)
	}
	return fmt.Sprintf("worker %s step %d: %v", e.Worker, e.Step, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}
