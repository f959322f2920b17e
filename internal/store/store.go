package store

import (
	"context"

	"github.com/phrazzld/isocheck/internal/domain"
)

// TxStore opens isolation-level-parameterized transactions against the shared
// table under test. Implementations must be safe for concurrent use: every
// worker of a run calls Begin from its own goroutine.
type TxStore interface {
	// Begin opens a new transaction on its own connection at the given level.
	// It returns an error wrapping ErrConnection if the store is unreachable.
	Begin(ctx context.Context, level domain.IsolationLevel) (Tx, error)

	// Reset replaces the contents of the shared table with the given rows in a
	// single committed transaction.
	Reset(ctx context.Context, rows []domain.SeedRow) error

	// Effective returns the level the store actually enforces when asked for
	// level (PostgreSQL runs READ UNCOMMITTED as READ COMMITTED).
	Effective(level domain.IsolationLevel) domain.IsolationLevel
}

// Tx is one live transaction. It is owned by a single goroutine.
//
// Read, Write and Commit return an error wrapping ErrSerialization when the
// store aborts the transaction to preserve its isolation guarantees; after such
// an error only Rollback may be called. Rollback is always safe to call, also
// after Commit or a failed statement.
type Tx interface {
	Read(ctx context.Context, target domain.Target) (domain.Value, error)
	Write(ctx context.Context, mutation domain.Mutation) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
