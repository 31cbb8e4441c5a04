// Package bootstrap turns a loaded configuration into ready-to-use rotation components.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/systmms/keyrotator/internal/awsclient"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/directory"
	"github.com/systmms/keyrotator/internal/escrow"
	"github.com/systmms/keyrotator/internal/ledger"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/metrics"
	"github.com/systmms/keyrotator/internal/notify"
	"github.com/systmms/keyrotator/internal/policy"
)

// Components holds everything a command needs.
type Components struct {
	Definition *config.Definition
	Directory  directory.Gateway
	Notifier   notify.Notifier
	Escrow     escrow.Escrow
	Ledger     ledger.Ledger
	Metrics    *metrics.Recorder
	STS        awsclient.STSClientAPI
	Logger     *logging.Logger

	clock func() time.Time
}

// Build loads AWS configuration and constructs every component for def.
func Build(ctx context.Context, def *config.Definition, logger *logging.Logger) (*Components, error) {
	awsCfg, err := awsclient.Load(ctx, def.AWS, logger)
	if err != nil {
		return nil, err
	}
	return FromAWSConfig(def, awsCfg, logger)
}

// FromAWSConfig constructs the components on top of an already loaded aws.Config.
func FromAWSConfig(def *config.Definition, awsCfg aws.Config, logger *logging.Logger) (*Components, error) {
	notifier, err := NewNotifier(def.Notifier, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Components{
		Definition: def,
		Directory:  directory.NewIAMGatewayFromConfig(awsCfg, logger),
		Notifier:   notifier,
		Ledger:     NewLedger(def.Ledger, awsCfg),
		Metrics:    metrics.NewRecorder(),
		STS:        sts.NewFromConfig(awsCfg),
		Logger:     logger,
	}
	if def.Escrow.SecretsManagerPrefix != "" {
		c.Escrow = escrow.NewSecretsManagerEscrowFromConfig(awsCfg, def.Escrow.SecretsManagerPrefix, logger)
	}
	return c, nil
}

// NewNotifier returns the notifier selected by cfg.Type.
func NewNotifier(cfg config.NotifierConfig, awsCfg aws.Config, logger *logging.Logger) (notify.Notifier, error) {
	switch cfg.Type {
	case config.NotifierSNS, "":
		return notify.NewSNSNotifierFromConfig(awsCfg, cfg.SNSTopicARN, logger), nil
	case config.NotifierWebhook:
		return notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:        cfg.WebhookURL,
			Headers:    cfg.WebhookHeaders,
			Timeout:    time.Duration(cfg.TimeoutMs) * time.Millisecond,
			RetryCount: cfg.RetryCount,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
	}
}

// NewLedger returns the ledger selected by cfg.Type. Unknown types disable the ledger.
func NewLedger(cfg config.LedgerConfig, awsCfg aws.Config) ledger.Ledger {
	switch cfg.Type {
	case config.LedgerFile:
		return ledger.NewFileLedger(cfg.Dir, cfg.HistoryLimit)
	case config.LedgerSSM:
		return ledger.NewSSMLedgerFromConfig(awsCfg, cfg.SSMParameter)
	default:
		return ledger.Nop{}
	}
}

// Evaluator builds a policy evaluator over the components.
func (c *Components) Evaluator() *policy.Evaluator {
	opts := []policy.Option{
		policy.WithLedger(c.Ledger),
		policy.WithMetrics(c.Metrics),
	}
	if c.Escrow != nil {
		opts = append(opts, policy.WithEscrow(c.Escrow))
	}
	if c.clock != nil {
		opts = append(opts, policy.WithClock(c.clock))
	}
	return policy.NewEvaluator(c.Directory, c.Notifier, c.Logger, opts...)
}

// RunOnce performs one rotation run and pushes metrics when a Pushgateway is configured.
// A failed push is logged; it never fails the run.
func (c *Components) RunOnce(ctx context.Context) (*policy.RunSummary, error) {
	summary, runErr := c.Evaluator().Run(ctx)

	if url := c.Definition.Metrics.PushgatewayURL; url != "" {
		if err := c.Metrics.Push(ctx, url, c.Definition.Metrics.Job); err != nil {
			c.Logger.Warn("%v", err)
		}
	}

	return summary, runErr
}
