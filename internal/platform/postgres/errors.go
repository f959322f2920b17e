package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phrazzld/isocheck/internal/store"
)

// PostgreSQL error codes
const (
	// serializationFailureCode is raised when a transaction cannot be serialized.
	serializationFailureCode = "40001"

	// deadlockDetectedCode is raised on the victim of a lock cycle.
	deadlockDetectedCode = "40P01"

	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// adminShutdownCode is raised when the server terminates the session.
	adminShutdownCode = "57P01"
)

// SQLSTATE classes
const (
	connectionExceptionClass = "08"
	dataExceptionClass       = "22"
	integrityViolationClass  = "23"
	syntaxOrAccessClass      = "42"
)

// MapError classifies a driver error into one of the store error classes,
// keeping the original error in the chain. operation and subject describe the
// statement for the message.
func MapError(operation, subject string, err error) error {
	if err == nil {
		return nil
	}

	// Cancellation belongs to the caller, not to the store.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, sql.ErrTxDone) {
		return store.NewStoreError(operation, subject, "transaction already finished", fmt.Errorf("%w: %w", store.ErrTxDone, err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case IsSerializationFailure(err):
			return store.NewStoreError(operation, subject, pgErr.Message, fmt.Errorf("%w: %w", store.ErrSerialization, err))
		case strings.HasPrefix(pgErr.Code, connectionExceptionClass) || pgErr.Code == adminShutdownCode:
			return store.NewStoreError(operation, subject, "connection lost", fmt.Errorf("%w: %w", store.ErrConnection, err))
		case pgErr.Code == uniqueViolationCode:
			return store.NewStoreError(operation, subject, "duplicate key", fmt.Errorf("%w: %w", store.ErrQuery, err))
		case strings.HasPrefix(pgErr.Code, syntaxOrAccessClass),
			strings.HasPrefix(pgErr.Code, dataExceptionClass),
			strings.HasPrefix(pgErr.Code, integrityViolationClass):
			return store.NewStoreError(operation, subject, "invalid statement", fmt.Errorf("%w: %w", store.ErrQuery, err))
		}
		return store.NewStoreError(operation, subject, pgErr.Message, err)
	}

	if IsConnectionError(err) {
		return store.NewStoreError(operation, subject, "database unreachable", fmt.Errorf("%w: %w", store.ErrConnection, err))
	}

	return store.NewStoreError(operation, subject, "unexpected database error", err)
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization
// failure or deadlock abort.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		(pgErr.Code == serializationFailureCode || pgErr.Code == deadlockDetectedCode)
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsConnectionError reports whether err means the server could not be reached
// or dropped the connection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, connectionExceptionClass) || pgErr.Code == adminShutdownCode
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// checkRowsAffected turns an UPDATE or DELETE that matched nothing into a
// query error.
func checkRowsAffected(result sql.Result, operation, key string) error {
	if result == nil {
		return fmt.Errorf("nil result provided to checkRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.NewStoreError(operation, key, "no such row", store.ErrQuery)
	}
	return nil
}
