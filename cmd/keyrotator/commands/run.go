package commands

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/policy"
)

// NewRunCommand creates the run command
func NewRunCommand(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one rotation pass over every IAM user",
		Long: `Evaluate every IAM user once and apply the rotation policy: create, notify,
deactivate or delete access keys as their ages require.

The first AWS error stops the run and the command exits non-zero.`,
		Example: `  # Rotate using SNS_TOPIC_ARN from the environment
  keyrotator run

  # Rotate with a config file and print the summary as JSON
  keyrotator run --config keyrotator.yaml --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := loadComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			summary, err := comps.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			if ok, err := writeStructured(cmd.OutOrStdout(), output, summary); ok {
				return err
			}
			return outputRunSummaryTable(cmd, summary)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")

	return cmd
}

func outputRunSummaryTable(cmd *cobra.Command, summary *policy.RunSummary) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, "IDENTITIES\tACTIONS\tSKIPPED\tMISSED DAYS\tDURATION")
	fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
		summary.Identities,
		formatCounts(summary.Actions),
		formatCounts(summary.Skipped),
		summary.MissedDays,
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond),
	)

	return w.Flush()
}

// formatCounts renders a count map as "a=1,b=2" in key order, or "-".
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ",")
}
