package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/isocheck/internal/platform/logger"
)

// TxFn runs inside a transaction opened by RunInTransaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction runs fn in one database transaction opened with opts (nil
// means the server default) and commits it when fn returns nil. An error or a
// panic from fn rolls the transaction back; the panic is re-raised.
//
// The harness uses it for setup work such as seeding, never for the scripted
// transactions it observes.
func RunInTransaction(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFn) (err error) {
	log := logger.FromContext(ctx)
	if opts != nil {
		log = log.With(slog.String("tx_isolation", opts.Isolation.String()))
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		p := recover()
		if p == nil && err == nil {
			return
		}

		rollbackErr := tx.Rollback()
		if errors.Is(rollbackErr, sql.ErrTxDone) {
			rollbackErr = nil
		}

		if p != nil {
			log.Error("rolled back transaction after panic",
				slog.Any("panic", p),
				slog.Any("rollback_error", rollbackErr))
			// ALLOW-PANIC: fn's panic belongs to the caller
			panic(p)
		}
		if rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			err = fmt.Errorf("error rolling back transaction: %v (original error: %w)", rollbackErr, err)
			return
		}
		log.Debug("rolled back transaction", slog.String("error", err.Error()))
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		log.Error("failed to commit transaction", slog.String("error", commitErr.Error()))
		// The transaction is finished; the deferred rollback is a no-op.
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, commitErr)
	}

	log.Debug("transaction committed")
	return nil
}
