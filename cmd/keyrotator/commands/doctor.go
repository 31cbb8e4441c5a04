package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/keyrotator/internal/awsclient"
	"github.com/systmms/keyrotator/internal/bootstrap"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/ledger"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check AWS access and notification settings",
		Long: `Verify that keyrotator can run in this environment.

This command checks:
- Configuration validity
- AWS credentials (STS GetCallerIdentity)
- Notification destination (SNS topic or webhook endpoint)
- Run ledger access, when enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking keyrotator configuration...")
			comps, err := loadComponents(cmd.Context(), cfg)
			if err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}

			results := append([]CheckResult{{Name: "configuration", OK: true, Detail: "loaded"}},
				runChecks(cmd.Context(), comps)...)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
			fmt.Fprintln(w, "-----\t------\t------")

			passed := 0
			for _, r := range results {
				status := "❌ failed"
				if r.OK {
					status = "✅ ok"
					passed++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d/%d checks passed\n", passed, len(results))
			if passed != len(results) {
				return fmt.Errorf("%d check(s) failed", len(results)-passed)
			}
			return nil
		},
	}

	return cmd
}

func runChecks(ctx context.Context, comps *bootstrap.Components) []CheckResult {
	var results []CheckResult

	if id, err := awsclient.WhoAmI(ctx, comps.STS); err != nil {
		results = append(results, CheckResult{Name: "aws identity", Detail: err.Error()})
	} else {
		results = append(results, CheckResult{Name: "aws identity", OK: true, Detail: id.ARN})
	}

	name := "notifier (" + comps.Notifier.Name() + ")"
	if err := comps.Notifier.Validate(ctx); err != nil {
		results = append(results, CheckResult{Name: name, Detail: err.Error()})
	} else {
		results = append(results, CheckResult{Name: name, OK: true, Detail: "reachable"})
	}

	if comps.Definition.Ledger.Type != config.LedgerNone {
		name := "ledger (" + comps.Definition.Ledger.Type + ")"
		last, err := comps.Ledger.LastRun(ctx)
		switch {
		case errors.Is(err, ledger.ErrNoRuns):
			results = append(results, CheckResult{Name: name, OK: true, Detail: "no runs recorded yet"})
		case err != nil:
			results = append(results, CheckResult{Name: name, Detail: err.Error()})
		default:
			results = append(results, CheckResult{Name: name, OK: true, Detail: "last run " + last.StartedAt.UTC().Format("2006-01-02 15:04 MST")})
		}
	}

	return results
}
