package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phrazzld/isocheck/internal/api"
	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/scenarios"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenarios and their expected verdicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := scenarios.All()

			if opts.Format == formatJSON {
				resp := make([]api.ScenarioResponse, len(catalog))
				for i, sc := range catalog {
					resp[i] = api.ScenarioToResponse(sc)
				}
				enc := json.NewEncoder(opts.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			tw := tabwriter.NewWriter(opts.stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprint(tw, "SCENARIO\tANOMALY")
			for _, level := range domain.AllIsolationLevels {
				_, _ = fmt.Fprintf(tw, "\t%s", level.Slug())
			}
			_, _ = fmt.Fprintln(tw)
			for _, sc := range catalog {
				_, _ = fmt.Fprintf(tw, "%s\t%s", sc.Name, sc.Anomaly)
				for _, level := range domain.AllIsolationLevels {
					_, _ = fmt.Fprintf(tw, "\t%s", sc.Expect(level))
				}
				_, _ = fmt.Fprintln(tw)
			}
			return tw.Flush()
		},
	}
}
