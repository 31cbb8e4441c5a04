package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/systmms/keyrotator/internal/config"
	dserrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/logging"
)

// NewScheduleCommand creates the schedule command
func NewScheduleCommand(cfg *config.Config) *cobra.Command {
	var (
		spec   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run rotation on a cron schedule until interrupted",
		Long: `Stay in the foreground and run a rotation pass on every tick of the cron
expression (schedule.cron, default @daily, evaluated in UTC).

A failed pass is logged and the scheduler keeps running. SIGINT or SIGTERM
waits for a pass in progress to finish, then exits.`,
		Example: `  # Rotate every day at 06:00 UTC
  keyrotator schedule --cron "0 6 * * *"

  # Rotate immediately, then daily
  keyrotator schedule --run-now`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := loadComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if spec == "" {
				spec = cfg.Definition.Schedule.Cron
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := cfg.Logger
			return runScheduled(ctx, spec, runNow, logger, func(ctx context.Context) {
				summary, err := comps.RunOnce(ctx)
				if err != nil {
					logger.Error("Rotation run failed: %v", err)
					return
				}
				logger.Info("Rotation run finished: %d identities, actions %s", summary.Identities, formatCounts(summary.Actions))
			})
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression, overrides schedule.cron")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately before waiting for the first tick")

	return cmd
}

// runScheduled runs job on every tick of spec until ctx is done, then waits for a running job to return.
func runScheduled(ctx context.Context, spec string, runNow bool, logger *logging.Logger, job func(context.Context)) error {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(spec, func() { job(ctx) }); err != nil {
		return dserrors.ConfigError{
			Field:      "schedule.cron",
			Value:      spec,
			Message:    fmt.Sprintf("invalid cron expression: %v", err),
			Suggestion: "Use a five-field expression such as '0 6 * * *' or a descriptor like '@daily'",
		}
	}

	if runNow {
		job(ctx)
	}

	c.Start()
	logger.Info("Scheduled rotation with %q", spec)

	<-ctx.Done()
	logger.Info("Shutting down scheduler...")
	<-c.Stop().Done()

	return nil
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
