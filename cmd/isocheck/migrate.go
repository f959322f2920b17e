package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/phrazzld/isocheck/internal/config"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/platform/postgres"
)

var migrateCommands = []string{
	postgres.MigrateUp,
	postgres.MigrateDown,
	postgres.MigrateStatus,
	postgres.MigrateReset,
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down|status|reset>",
		Short:     "Manage the harness schema in PostgreSQL",
		Args:      cobra.ExactArgs(1),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			if !slices.Contains(migrateCommands, command) {
				return newExitError(ExitError,
					fmt.Sprintf("invalid migration command %q: must be one of %v", command, migrateCommands))
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Harness.Store != config.StorePostgres {
				return newExitError(ExitError, "migrate requires the postgres store")
			}

			log, err := setupAppLogger(cfg, opts.stderr)
			if err != nil {
				return wrapExitError(ExitError, "failed to set up logging", err)
			}
			ctx := logger.WithLogger(cmd.Context(), log)

			pg, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
			if err != nil {
				return wrapExitError(ExitError, "failed to open database", err)
			}
			defer func() {
				if err := pg.Close(); err != nil {
					log.Error("failed to close database", "error", err)
				}
			}()

			if err := postgres.Migrate(ctx, pg.DB(), command); err != nil {
				return wrapExitError(ExitError, "migration failed", err)
			}
			log.Info("migration command completed", "command", command)
			return nil
		},
	}
}
