package store

import (
	"errors"
	"fmt"
)

// Error classes reported by every store implementation.
var (
	// ErrConnection is returned when the store cannot be reached or the
	// connection broke mid-transaction. It is fatal to a run.
	ErrConnection = errors.New("store connection failed")

	// ErrQuery is returned when a read or write is malformed: unknown target,
	// missing row, duplicate key, bad value.
	ErrQuery = errors.New("query failed")

	// ErrSerialization is returned when the store aborted the transaction to
	// preserve isolation (serialization failure or deadlock). The harness
	// records it as an outcome instead of failing the run.
	ErrSerialization = errors.New("serialization failure")

	// ErrTxDone is returned when a statement is issued on a finished transaction.
	ErrTxDone = errors.New("transaction already finished")

	// ErrTransactionFailed is returned when a transaction used for setup fails
	// to commit or when an operation within it fails.
	ErrTransactionFailed = errors.New("transaction failed")
)

// IsSerializationFailure reports whether err is a store-reported isolation conflict.
func IsSerializationFailure(err error) bool {
	return errors.Is(err, ErrSerialization)
}

// IsConnectionError reports whether err means the store is unreachable.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

// StoreError is a custom error type for store errors with additional context.
type StoreError struct {
	Operation string // The operation that failed (e.g., "read", "commit")
	Target    string // The row or group involved, if any
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	subject := e.Operation
	if e.Target != "" {
		subject = fmt.Sprintf("%s %s", e.Operation, e.Target)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", subject, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", subject, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError wrapping err.
func NewStoreError(operation, target, message string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Target:    target,
		Message:   message,
		Err:       err,
	}
}
