package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/harness"
	"github.com/phrazzld/isocheck/internal/redact"
	"github.com/phrazzld/isocheck/internal/scenarios"
)

const isolationUsage = "isolation level (read-uncommitted|read-committed|repeatable-read|serializable)"

func newRunScenarioCommand(opts *rootOptions) *cobra.Command {
	var isolation string

	cmd := &cobra.Command{
		Use:   "run-scenario <name>",
		Short: "Run one scenario at one isolation level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenarios.Lookup(args[0])
			if err != nil {
				return wrapExitError(ExitError, "cannot run scenario", err)
			}
			level, err := domain.ParseIsolationLevel(isolation)
			if err != nil {
				return wrapExitError(ExitError, "cannot run scenario", err)
			}

			ctx, app, err := opts.openApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			result, err := harness.RunWithRetry(ctx, app.runner, sc, level, app.retryPolicy())
			if err != nil {
				return wrapExitError(ExitError, fmt.Sprintf("%s at %s produced no verdict", sc.Name, level), err)
			}

			if err := opts.reportSink(app.logger, false, true).Emit(ctx, result); err != nil {
				return wrapExitError(ExitError, "failed to write report", err)
			}
			if !result.Passed {
				return newExitError(ExitUnexpected, fmt.Sprintf("%s at %s: expected %s, got %s",
					sc.Name, level, result.Expected, result.Verdict))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&isolation, "isolation", "i", "", isolationUsage)
	_ = cmd.MarkFlagRequired("isolation")

	return cmd
}

// tally counts the outcomes of a batch of runs.
type tally struct {
	Passed int
	Failed int
	Errors int
}

func (t tally) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d errors", t.Passed, t.Failed, t.Errors)
}

func newRunAllCommand(opts *rootOptions) *cobra.Command {
	var (
		names      []string
		isolations []string
	)

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Run every scenario at every isolation level",
		Long: "run-all runs the scenario matrix one run at a time. A run that produces no\n" +
			"verdict is reported and counted; the remaining runs still execute.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, levels, err := selectMatrix(names, isolations)
			if err != nil {
				return wrapExitError(ExitError, "invalid selection", err)
			}

			ctx, app, err := opts.openApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			sink := opts.reportSink(app.logger, true, false)
			var counts tally

			for _, sc := range selected {
				for _, level := range levels {
					if err := ctx.Err(); err != nil {
						return wrapExitError(ExitError, "interrupted", err)
					}

					result, err := harness.RunWithRetry(ctx, app.runner, sc, level, app.retryPolicy())
					if err != nil {
						counts.Errors++
						app.logger.Error("run produced no verdict",
							"scenario", sc.Name,
							"isolation", level,
							"error", redact.Error(err))
						_, _ = fmt.Fprintf(opts.stderr, "ERROR %s at %s: %s\n", sc.Name, level, redact.Error(err))
						continue
					}

					if result.Passed {
						counts.Passed++
					} else {
						counts.Failed++
					}
					if err := sink.Emit(ctx, result); err != nil {
						return wrapExitError(ExitError, "failed to write report", err)
					}
				}
			}

			// JSON output stays one result per line; the tally goes to stderr.
			summaryOut := opts.stdout
			if opts.Format == formatJSON {
				summaryOut = opts.stderr
			}
			_, _ = fmt.Fprintln(summaryOut, counts)

			switch {
			case counts.Errors > 0:
				return newExitError(ExitError, counts.String())
			case counts.Failed > 0:
				return newExitError(ExitUnexpected, counts.String())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&names, "scenario", "s", nil, "scenarios to run (default all)")
	cmd.Flags().StringSliceVarP(&isolations, "isolation", "i", nil, isolationUsage+" (default all)")

	return cmd
}

// selectMatrix resolves the requested scenario names and levels. Empty
// selections mean everything.
func selectMatrix(names, isolations []string) ([]*harness.Scenario, []domain.IsolationLevel, error) {
	var selected []*harness.Scenario
	if len(names) == 0 {
		selected = scenarios.All()
	}
	var errs []error
	for _, name := range names {
		sc, err := scenarios.Lookup(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		selected = append(selected, sc)
	}

	levels := domain.AllIsolationLevels
	if len(isolations) > 0 {
		levels = make([]domain.IsolationLevel, 0, len(isolations))
		for _, raw := range isolations {
			level, err := domain.ParseIsolationLevel(raw)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			levels = append(levels, level)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}
	return selected, levels, nil
}
