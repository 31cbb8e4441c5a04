package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/systmms/keyrotator/internal/bootstrap"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/secure"
)

type buildFunc func(ctx context.Context, def *config.Definition, logger *logging.Logger) (*bootstrap.Components, error)

// newHandler returns the Lambda handler. The event payload is ignored; every
// invocation is one full rotation run returning 0 on completion. memguard
// regions are purged before the execution environment is frozen.
func newHandler(build buildFunc) func(ctx context.Context, event json.RawMessage) (int, error) {
	return func(ctx context.Context, event json.RawMessage) (int, error) {
		defer secure.Purge()

		cfg := &config.Config{
			Path:      os.Getenv("KEYROTATOR_CONFIG"),
			LogFormat: logging.FormatJSON,
		}
		if err := cfg.Load(); err != nil {
			return 1, err
		}
		logger := logging.New(cfg.Definition.Log.Debug, cfg.Definition.Log.Format)

		comps, err := build(ctx, cfg.Definition, logger)
		if err != nil {
			return 1, err
		}

		if _, err := comps.RunOnce(ctx); err != nil {
			logger.Error("Rotation run failed: %v", err)
			return 1, err
		}
		return 0, nil
	}
}

func main() {
	lambda.Start(newHandler(bootstrap.Build))
}
