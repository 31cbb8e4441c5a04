package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/keyrotator/cmd/keyrotator/commands"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	secure.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		envFile    string
		debug      bool
		logFormat  string
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "keyrotator",
		Short: "Rotate IAM user access keys on a fixed 90-day cycle",
		Long: `keyrotator walks every IAM user with an Owner tag and advances its access keys:
a new key at 90 days, reminders while the new key is unused, deactivation of the
old key 30 days later and deletion 60 days later. Run it once per day.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.EnvFile = envFile
			cfg.Debug = debug
			cfg.LogFormat = logFormat
			cfg.Logger = logging.New(debug, logFormat)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (optional, environment variables are enough)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: logfmt, json")

	rootCmd.AddCommand(
		commands.NewRunCommand(cfg),
		commands.NewPlanCommand(cfg),
		commands.NewScheduleCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewHistoryCommand(cfg),
	)

	return rootCmd.Execute()
}
