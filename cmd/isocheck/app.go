package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/isocheck/internal/config"
	"github.com/phrazzld/isocheck/internal/harness"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/platform/memstore"
	"github.com/phrazzld/isocheck/internal/platform/postgres"
	"github.com/phrazzld/isocheck/internal/redact"
	"github.com/phrazzld/isocheck/internal/store"
)

// application holds the dependencies every command shares and releases them
// in cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger

	store store.TxStore
	// pg is set only when the postgres store is selected.
	pg *postgres.Store

	runner *harness.Runner
}

// newApplication opens the configured store and builds a runner for it. The
// postgres schema is migrated up first so that runs never hit a missing table.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
	}

	switch cfg.Harness.Store {
	case config.StoreMemory:
		app.store = memstore.New(log.With("component", "memstore"))
		log.Debug("using in-memory store")
	case config.StorePostgres:
		pg, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := postgres.Migrate(logger.WithLogger(ctx, log), pg.DB(), postgres.MigrateUp); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		app.pg = pg
		app.store = pg
		log.Debug("using postgres store", "database_url", redact.DatabaseURL(cfg.Database.URL))
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Harness.Store)
	}

	runner, err := harness.NewRunner(app.store, harness.RunnerConfig{
		SignalTimeout: cfg.Harness.SignalTimeout,
		RunTimeout:    cfg.Harness.RunTimeout,
	}, log)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	app.runner = runner

	return app, nil
}

// retryPolicy is the retry policy configured for this application.
func (app *application) retryPolicy() harness.RetryPolicy {
	return harness.RetryPolicy{Attempts: app.config.Harness.RetryAttempts}
}

// retryingRunner wraps the runner with the configured retry policy.
func (app *application) retryingRunner() *harness.RetryingRunner {
	return &harness.RetryingRunner{Runner: app.runner, Policy: app.retryPolicy()}
}

// cleanup releases the store.
func (app *application) cleanup() {
	closer, ok := app.store.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		app.logger.Error("failed to close store", "error", redact.Error(err))
		return
	}
	app.logger.Debug("store closed")
}

// setupAppLogger configures the logger from cfg. Logs always go to w so that
// reports on stdout stay parseable.
func setupAppLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	l, err := logger.Setup(logger.LoggerConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: w,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return l, nil
}
