package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/ledger"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand(cfg *config.Config) *cobra.Command {
	var (
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded rotation runs",
		Long: `List completed runs from the run ledger, newest first.

Requires ledger.type file or ssm.`,
		Example: `  # Last 10 runs
  keyrotator history --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := loadComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if cfg.Definition.Ledger.Type == config.LedgerNone {
				fmt.Fprintln(cmd.OutOrStdout(), "Run ledger is disabled. Set ledger.type to file or ssm.")
				return nil
			}

			runs, err := comps.Ledger.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to read run history: %w", err)
			}

			if ok, err := writeStructured(cmd.OutOrStdout(), output, runs); ok {
				return err
			}
			return outputHistoryTable(cmd, runs)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")

	return cmd
}

func outputHistoryTable(cmd *cobra.Command, runs []ledger.RunRecord) error {
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tIDENTITIES\tACTIONS")
	fmt.Fprintln(w, "-------\t--------\t----------\t-------")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			run.Identities,
			formatCounts(run.Actions),
		)
	}

	return w.Flush()
}
