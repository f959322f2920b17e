package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/phrazzld/isocheck/internal/config"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/report"
)

// Report formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
)

var validFormats = []string{formatText, formatJSON}

// rootOptions holds the global flags. Empty values leave the configuration
// file and environment untouched.
type rootOptions struct {
	ConfigFile  string
	Store       string
	DatabaseURL string
	LogLevel    string
	Format      string
	Verbose     bool
	// Port is set by serve.
	Port int

	stdout io.Writer
	stderr io.Writer
}

// newRootCommand creates the isocheck command tree writing reports to stdout
// and logs and diagnostics to stderr.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "isocheck",
		Short: "Verify transaction isolation guarantees",
		Long: "isocheck runs scripted concurrent transactions against a store and checks\n" +
			"which anomalies each isolation level lets through.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return newExitError(ExitError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, validFormats))
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./isocheck.yaml if present)")
	flags.StringVar(&opts.Store, "store", "", "store backend (postgres|memory)")
	flags.StringVar(&opts.DatabaseURL, "database-url", "", "postgres connection URL")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.Format, "format", formatText, "report format (text|json)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "print every observation")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newRunScenarioCommand(opts))
	cmd.AddCommand(newRunAllCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// overrides converts the set flags into configuration keys.
func (o *rootOptions) overrides() map[string]any {
	overrides := make(map[string]any)
	if o.Store != "" {
		overrides["harness.store"] = o.Store
	}
	if o.DatabaseURL != "" {
		overrides["database.url"] = o.DatabaseURL
	}
	if o.LogLevel != "" {
		overrides["log.level"] = o.LogLevel
	}
	if o.Port != 0 {
		overrides["server.port"] = o.Port
	}
	return overrides
}

// loadConfig reads the configuration with the flag overrides applied.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFileWith(o.ConfigFile, o.overrides())
	if err != nil {
		return nil, wrapExitError(ExitError, "failed to load configuration", err)
	}
	return cfg, nil
}

// openApplication loads configuration, sets up logging and opens the store.
// The returned context carries the logger.
func (o *rootOptions) openApplication(ctx context.Context) (context.Context, *application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return ctx, nil, err
	}

	log, err := setupAppLogger(cfg, o.stderr)
	if err != nil {
		return ctx, nil, wrapExitError(ExitError, "failed to set up logging", err)
	}
	ctx = logger.WithLogger(ctx, log)

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return ctx, nil, wrapExitError(ExitError, "failed to initialize", err)
	}
	return ctx, app, nil
}

// reportSink builds the sink for --format: the report on stdout plus a log
// line per result. quiet drops the observation log from text reports unless
// --verbose is set.
func (o *rootOptions) reportSink(log *slog.Logger, quiet, jsonIndent bool) *report.Emitter {
	var primary report.Sink
	switch o.Format {
	case formatJSON:
		primary = report.NewJSONSink(o.stdout, jsonIndent)
	default:
		text := report.NewTextSink(o.stdout)
		text.Quiet = quiet && !o.Verbose
		primary = text
	}
	emitter := report.NewEmitter(log, primary)
	emitter.Register(report.NewLogSink(log))
	return emitter
}
