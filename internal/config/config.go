package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	dserrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var definitionSchema []byte

// Notifier types.
const (
	NotifierSNS     = "sns"
	NotifierWebhook = "webhook"
)

// Ledger types.
const (
	LedgerNone = "none"
	LedgerFile = "file"
	LedgerSSM  = "ssm"
)

const (
	DefaultSchedule     = "@daily"
	DefaultSSMParameter = "/keyrotator/last-run"
	DefaultMetricsJob   = "keyrotator"
	DefaultHistoryLimit = 90
)

// Config holds the runtime configuration
type Config struct {
	Path    string
	EnvFile string
	// Debug and LogFormat come from command-line flags and win over file and environment.
	Debug      bool
	LogFormat  string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the keyrotator.yaml structure after environment overrides and defaults
type Definition struct {
	Version  int            `yaml:"version" json:"version"`
	AWS      AWSConfig      `yaml:"aws" json:"aws"`
	Notifier NotifierConfig `yaml:"notifier" json:"notifier"`
	Ledger   LedgerConfig   `yaml:"ledger" json:"ledger"`
	Escrow   EscrowConfig   `yaml:"escrow" json:"escrow"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// AWSConfig selects the account and credentials the job runs against
type AWSConfig struct {
	Region     string `yaml:"region,omitempty" json:"region"`
	Profile    string `yaml:"profile,omitempty" json:"profile"`
	Endpoint   string `yaml:"endpoint,omitempty" json:"endpoint"` // LocalStack or testing
	AssumeRole string `yaml:"assume_role,omitempty" json:"assume_role"`
	ExternalID string `yaml:"external_id,omitempty" json:"external_id"`

	// Static credentials, only meant for LocalStack.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key"`
}

// NotifierConfig selects where owner notifications go
type NotifierConfig struct {
	Type           string            `yaml:"type,omitempty" json:"type"`
	SNSTopicARN    string            `yaml:"sns_topic_arn,omitempty" json:"sns_topic_arn"`
	WebhookURL     string            `yaml:"webhook_url,omitempty" json:"webhook_url"`
	WebhookHeaders map[string]string `yaml:"webhook_headers,omitempty" json:"webhook_headers,omitempty"`
	TimeoutMs      int               `yaml:"timeout_ms,omitempty" json:"timeout_ms"`
	RetryCount     int               `yaml:"retry_count,omitempty" json:"retry_count"`
}

// LedgerConfig selects where completed runs are recorded for missed-day detection
type LedgerConfig struct {
	Type         string `yaml:"type,omitempty" json:"type"`
	Dir          string `yaml:"dir,omitempty" json:"dir"`
	SSMParameter string `yaml:"ssm_parameter,omitempty" json:"ssm_parameter"`
	HistoryLimit int    `yaml:"history_limit,omitempty" json:"history_limit"`
}

// EscrowConfig enables copying new key pairs into Secrets Manager
type EscrowConfig struct {
	SecretsManagerPrefix string `yaml:"secrets_manager_prefix,omitempty" json:"secrets_manager_prefix"`
}

// ScheduleConfig holds the cron expression used by the schedule command
type ScheduleConfig struct {
	Cron string `yaml:"cron,omitempty" json:"cron"`
}

// MetricsConfig holds Prometheus Pushgateway settings
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty" json:"pushgateway_url"`
	Job            string `yaml:"job,omitempty" json:"job"`
}

// LogConfig holds log output settings
type LogConfig struct {
	Format string `yaml:"format,omitempty" json:"format"`
	Debug  bool   `yaml:"debug,omitempty" json:"debug"`
}

// Load reads the optional .env and YAML files, applies environment overrides and defaults, and validates the result.
func (c *Config) Load() error {
	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return dserrors.UserError{
				Message:    "Failed to read env file",
				Details:    err.Error(),
				Suggestion: "Use KEY=value lines in the env file",
				Err:        err,
			}
		}
	}

	def := &Definition{}
	if c.Path != "" {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return dserrors.ConfigError{
					Field:      "path",
					Value:      c.Path,
					Message:    "configuration file not found",
					Suggestion: "Omit --config to run from environment variables only",
				}
			}
			return dserrors.UserError{
				Message:    "Failed to read configuration file",
				Details:    err.Error(),
				Suggestion: "Check file permissions and path",
				Err:        err,
			}
		}

		if err := yaml.Unmarshal(data, def); err != nil {
			return dserrors.ConfigError{
				Message:    "invalid YAML syntax in configuration file",
				Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
			}
		}
	}

	def.ApplyEnv(os.LookupEnv)
	if c.Debug {
		def.Log.Debug = true
	}
	if c.LogFormat != "" {
		def.Log.Format = c.LogFormat
	}
	def.ApplyDefaults()

	if err := def.Validate(); err != nil {
		return err
	}

	c.Definition = def
	return nil
}

// ApplyEnv overrides file values with environment variables.
// SNS_TOPIC_ARN is honoured for compatibility with existing deployments.
func (d *Definition) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("AWS_REGION", &d.AWS.Region)
	set("AWS_PROFILE", &d.AWS.Profile)
	set("KEYROTATOR_ENDPOINT_URL", &d.AWS.Endpoint)
	set("KEYROTATOR_ASSUME_ROLE", &d.AWS.AssumeRole)
	set("KEYROTATOR_EXTERNAL_ID", &d.AWS.ExternalID)

	set("KEYROTATOR_NOTIFIER", &d.Notifier.Type)
	set("SNS_TOPIC_ARN", &d.Notifier.SNSTopicARN)
	set("KEYROTATOR_WEBHOOK_URL", &d.Notifier.WebhookURL)

	set("KEYROTATOR_LEDGER", &d.Ledger.Type)
	set("KEYROTATOR_LEDGER_DIR", &d.Ledger.Dir)
	set("KEYROTATOR_LEDGER_SSM_PARAMETER", &d.Ledger.SSMParameter)

	set("KEYROTATOR_ESCROW_PREFIX", &d.Escrow.SecretsManagerPrefix)
	set("KEYROTATOR_SCHEDULE", &d.Schedule.Cron)
	set("KEYROTATOR_PUSHGATEWAY_URL", &d.Metrics.PushgatewayURL)
	set("KEYROTATOR_LOG_FORMAT", &d.Log.Format)

	if v, ok := lookup("KEYROTATOR_DEBUG"); ok {
		if debug, err := strconv.ParseBool(v); err == nil {
			d.Log.Debug = debug
		}
	}
}

// ApplyDefaults fills every unset field that has a default.
func (d *Definition) ApplyDefaults() {
	if d.Version == 0 {
		d.Version = 1
	}
	if d.Notifier.Type == "" {
		d.Notifier.Type = NotifierSNS
	}
	if d.Notifier.TimeoutMs <= 0 {
		d.Notifier.TimeoutMs = 10000
	}
	if d.Ledger.Type == "" {
		d.Ledger.Type = LedgerNone
	}
	if d.Ledger.Type == LedgerFile && d.Ledger.Dir == "" {
		d.Ledger.Dir = DefaultLedgerDir()
	}
	if d.Ledger.Type == LedgerSSM && d.Ledger.SSMParameter == "" {
		d.Ledger.SSMParameter = DefaultSSMParameter
	}
	if d.Ledger.HistoryLimit <= 0 {
		d.Ledger.HistoryLimit = DefaultHistoryLimit
	}
	if d.Schedule.Cron == "" {
		d.Schedule.Cron = DefaultSchedule
	}
	if d.Metrics.Job == "" {
		d.Metrics.Job = DefaultMetricsJob
	}
	if d.Log.Format == "" {
		d.Log.Format = logging.FormatLogfmt
	}
}

// Validate checks the definition against the embedded JSON schema, then the cross-field rules the schema cannot express.
func (d *Definition) Validate() error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(definitionSchema),
		gojsonschema.NewGoLoader(d),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return dserrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
			Suggestion: "Compare your configuration with the documented keys",
		}
	}

	switch d.Notifier.Type {
	case NotifierSNS:
		if d.Notifier.SNSTopicARN == "" {
			return dserrors.ConfigError{
				Field:      "notifier.sns_topic_arn",
				Message:    "an SNS topic is required for the sns notifier",
				Suggestion: "Set SNS_TOPIC_ARN or notifier.sns_topic_arn",
			}
		}
	case NotifierWebhook:
		u, err := url.ParseRequestURI(d.Notifier.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return dserrors.ConfigError{
				Field:      "notifier.webhook_url",
				Value:      d.Notifier.WebhookURL,
				Message:    "a valid http(s) URL is required for the webhook notifier",
				Suggestion: "Set KEYROTATOR_WEBHOOK_URL or notifier.webhook_url",
			}
		}
	}

	if (d.AWS.AccessKeyID == "") != (d.AWS.SecretAccessKey == "") {
		return dserrors.ConfigError{
			Field:      "aws.access_key_id",
			Message:    "static credentials need both access_key_id and secret_access_key",
			Suggestion: "Remove both to use the default credential chain",
		}
	}

	if _, err := cron.ParseStandard(d.Schedule.Cron); err != nil {
		return dserrors.ConfigError{
			Field:      "schedule.cron",
			Value:      d.Schedule.Cron,
			Message:    fmt.Sprintf("invalid cron expression: %v", err),
			Suggestion: "Use a five-field expression such as '0 6 * * *' or a descriptor like '@daily'",
		}
	}

	return nil
}

// DefaultLedgerDir returns the default directory for the file ledger
func DefaultLedgerDir() string {
	if dir := os.Getenv("KEYROTATOR_LEDGER_DIR"); dir != "" {
		return dir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "keyrotator", "ledger")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "keyrotator", "ledger")
	}
	return filepath.Join(os.TempDir(), "keyrotator", "ledger")
}
