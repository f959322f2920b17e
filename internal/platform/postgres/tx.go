package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/store"
)

// Statements against the table under test.
const (
	selectRowSQL   = `SELECT value FROM harness_rows WHERE key = $1`
	selectCountSQL = `SELECT COUNT(*) FROM harness_rows WHERE grp = $1`
	selectSumSQL   = `SELECT COALESCE(SUM(value), 0) FROM harness_rows WHERE grp = $1`
	updateRowSQL   = `UPDATE harness_rows SET value = $2 WHERE key = $1`
	insertRowSQL   = `INSERT INTO harness_rows (key, grp, value) VALUES ($1, $2, $3)`
	deleteRowSQL   = `DELETE FROM harness_rows WHERE key = $1`
)

// Tx is one PostgreSQL transaction.
type Tx struct {
	tx *sql.Tx
}

var _ store.Tx = (*Tx)(nil)

// Read evaluates target inside the transaction.
func (t *Tx) Read(ctx context.Context, target domain.Target) (domain.Value, error) {
	if err := target.Validate(); err != nil {
		return domain.Value{}, store.NewStoreError("read", target.String(), "malformed target", fmt.Errorf("%w: %w", store.ErrQuery, err))
	}

	var (
		query string
		arg   string
	)
	switch target.Kind {
	case domain.TargetRow:
		query, arg = selectRowSQL, target.Key
	case domain.TargetCount:
		query, arg = selectCountSQL, target.Group
	case domain.TargetSum:
		query, arg = selectSumSQL, target.Group
	}

	var v int64
	err := t.tx.QueryRowContext(ctx, query, arg).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Value{}, nil
	}
	if err != nil {
		return domain.Value{}, MapError("read", target.String(), err)
	}
	return domain.Value{Int: v, Found: true}, nil
}

// Write applies m without committing.
func (t *Tx) Write(ctx context.Context, m domain.Mutation) error {
	if err := m.Validate(); err != nil {
		return store.NewStoreError("write", m.Key, "malformed mutation", fmt.Errorf("%w: %w", store.ErrQuery, err))
	}

	var (
		result sql.Result
		err    error
	)
	switch m.Kind {
	case domain.MutationSet:
		result, err = t.tx.ExecContext(ctx, updateRowSQL, m.Key, m.Value)
	case domain.MutationInsert:
		_, err = t.tx.ExecContext(ctx, insertRowSQL, m.Key, m.Group, m.Value)
	case domain.MutationDelete:
		result, err = t.tx.ExecContext(ctx, deleteRowSQL, m.Key)
	}
	if err != nil {
		return MapError("write", m.Key, err)
	}

	if result != nil {
		return checkRowsAffected(result, "write", m.Key)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return MapError("commit", "", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is not
// an error.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return MapError("rollback", "", err)
	}
	return nil
}
