package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/policy"
)

// NewPlanCommand creates the plan command
func NewPlanCommand(cfg *config.Config) *cobra.Command {
	var (
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do today without changing anything",
		Long: `Read every IAM user and print the decision a run would take today.
No key is created, changed or deleted and no notification is sent.

By default only identities with an action or a skip reason are listed.`,
		Example: `  # Show today's pending actions
  keyrotator plan

  # Show every identity as YAML
  keyrotator plan --all -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := loadComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			decisions, err := comps.Evaluator().Plan(cmd.Context())
			if err != nil {
				return err
			}

			if !all {
				decisions = pending(decisions)
			}

			if ok, err := writeStructured(cmd.OutOrStdout(), output, decisions); ok {
				return err
			}
			return outputPlanTable(cmd, decisions)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")
	cmd.Flags().BoolVar(&all, "all", false, "Include identities with nothing to do")

	return cmd
}

func pending(decisions []policy.Decision) []policy.Decision {
	out := make([]policy.Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Skip != "" || len(d.Actions) > 0 {
			out = append(out, d)
		}
	}
	return out
}

func outputPlanTable(cmd *cobra.Command, decisions []policy.Decision) error {
	if len(decisions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do today.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tOWNER\tKEYS\tAGE\tDECISION")
	fmt.Fprintln(w, "--------\t-----\t----\t---\t--------")

	for _, d := range decisions {
		owner := d.Owner
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", d.Identity, owner, d.Keys, d.Age, describeDecision(d))
	}

	return w.Flush()
}

func describeDecision(d policy.Decision) string {
	switch d.Skip {
	case policy.SkipNoOwner:
		return "skip (no Owner tag)"
	case policy.SkipTooManyKeys:
		return "skip (more than 2 keys)"
	}
	if len(d.Actions) == 0 {
		return "none"
	}

	parts := make([]string, 0, len(d.Actions))
	for _, a := range d.Actions {
		switch a.Kind {
		case policy.ActionCreate:
			parts = append(parts, "create new key and notify owner")
		case policy.ActionRemind:
			parts = append(parts, fmt.Sprintf("remind owner to use %s (%d days left)", a.KeyID, a.DaysLeft))
		case policy.ActionDeactivate:
			parts = append(parts, "deactivate "+a.KeyID)
		case policy.ActionDelete:
			parts = append(parts, "delete "+a.KeyID)
		}
	}
	return strings.Join(parts, "; ")
}
