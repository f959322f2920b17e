package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/store"
)

// pingTimeout bounds the connectivity check in Open.
const pingTimeout = 5 * time.Second

// Store implements store.TxStore on a PostgreSQL database.
type Store struct {
	db *sql.DB
}

var _ store.TxStore = (*Store)(nil)

// New wraps an open database handle. The pool must allow at least as many
// open connections as the largest scenario has workers, plus one for Reset.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to databaseURL and verifies the server answers. maxOpenConns
// caps the pool; a non-positive value leaves it unlimited.
func Open(ctx context.Context, databaseURL string, maxOpenConns int) (*Store, error) {
	log := logger.FromContext(ctx)

	if databaseURL == "" {
		return nil, store.NewStoreError("connect", "", "database URL is empty", store.ErrConnection)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, store.NewStoreError("connect", "", "failed to open database connection", fmt.Errorf("%w: %w", store.ErrConnection, err))
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		log.Error("database ping failed", "error", err)
		return nil, store.NewStoreError("connect", "", "database ping failed", fmt.Errorf("%w: %w", store.ErrConnection, err))
	}

	log.Debug("database connection verified", "max_open_conns", maxOpenConns)
	return New(db), nil
}

// DB returns the underlying handle, for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Effective reports the level PostgreSQL enforces for level: it has no
// READ UNCOMMITTED and runs it as READ COMMITTED.
func (s *Store) Effective(level domain.IsolationLevel) domain.IsolationLevel {
	if level == domain.ReadUncommitted {
		return domain.ReadCommitted
	}
	return level
}

// sqlIsolation maps a domain level onto database/sql.
func sqlIsolation(level domain.IsolationLevel) (sql.IsolationLevel, error) {
	switch level {
	case domain.ReadUncommitted:
		return sql.LevelReadUncommitted, nil
	case domain.ReadCommitted:
		return sql.LevelReadCommitted, nil
	case domain.RepeatableRead:
		return sql.LevelRepeatableRead, nil
	case domain.Serializable:
		return sql.LevelSerializable, nil
	}
	return 0, fmt.Errorf("%w: %d", domain.ErrUnknownIsolationLevel, uint8(level))
}

// Begin opens a transaction at level on its own pooled connection.
func (s *Store) Begin(ctx context.Context, level domain.IsolationLevel) (store.Tx, error) {
	isolation, err := sqlIsolation(level)
	if err != nil {
		return nil, store.NewStoreError("begin", "", "unsupported isolation level", fmt.Errorf("%w: %w", store.ErrQuery, err))
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		// Any failure to obtain a transaction means the store is unusable.
		mapped := MapError("begin", level.String(), err)
		if !store.IsConnectionError(mapped) {
			mapped = store.NewStoreError("begin", level.String(), "failed to begin transaction", fmt.Errorf("%w: %w", store.ErrConnection, err))
		}
		return nil, mapped
	}

	return &Tx{tx: tx}, nil
}

// Reset replaces the contents of harness_rows with rows in one transaction.
func (s *Store) Reset(ctx context.Context, rows []domain.SeedRow) error {
	log := logger.FromContext(ctx)

	err := store.RunInTransaction(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM harness_rows`); err != nil {
			return MapError("reset", "harness_rows", err)
		}
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO harness_rows (key, grp, value) VALUES ($1, $2, $3)`,
				r.Key, r.Group, r.Value,
			); err != nil {
				return MapError("reset", r.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to reset harness rows", slog.Int("rows", len(rows)), slog.String("error", err.Error()))
		if !store.IsConnectionError(err) && IsConnectionError(err) {
			return fmt.Errorf("%w: %w", store.ErrConnection, err)
		}
		return err
	}

	log.Debug("harness rows reset", slog.Int("rows", len(rows)))
	return nil
}

// Rows returns the committed contents of harness_rows ordered by key.
func (s *Store) Rows(ctx context.Context) ([]domain.SeedRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, grp, value FROM harness_rows ORDER BY key`)
	if err != nil {
		return nil, MapError("list", "harness_rows", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.SeedRow
	for rows.Next() {
		var r domain.SeedRow
		if err := rows.Scan(&r.Key, &r.Group, &r.Value); err != nil {
			return nil, MapError("list", "harness_rows", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError("list", "harness_rows", err)
	}
	return out, nil
}
