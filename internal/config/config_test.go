package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyrotator/internal/logging"
)

const testTopic = "arn:aws:sns:us-east-1:123456789012:key-rotation"

// clearEnv blanks every variable Load reads so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AWS_REGION", "AWS_PROFILE", "SNS_TOPIC_ARN",
		"KEYROTATOR_ENDPOINT_URL", "KEYROTATOR_ASSUME_ROLE", "KEYROTATOR_EXTERNAL_ID",
		"KEYROTATOR_NOTIFIER", "KEYROTATOR_WEBHOOK_URL",
		"KEYROTATOR_LEDGER", "KEYROTATOR_LEDGER_DIR", "KEYROTATOR_LEDGER_SSM_PARAMETER",
		"KEYROTATOR_ESCROW_PREFIX", "KEYROTATOR_SCHEDULE", "KEYROTATOR_PUSHGATEWAY_URL",
		"KEYROTATOR_LOG_FORMAT", "KEYROTATOR_DEBUG",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyrotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_EnvironmentOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNS_TOPIC_ARN", testTopic)
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg := &Config{Logger: logging.Nop()}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, NotifierSNS, def.Notifier.Type)
	assert.Equal(t, testTopic, def.Notifier.SNSTopicARN)
	assert.Equal(t, "eu-west-1", def.AWS.Region)
	assert.Equal(t, LedgerNone, def.Ledger.Type)
	assert.Equal(t, DefaultSchedule, def.Schedule.Cron)
	assert.Equal(t, logging.FormatLogfmt, def.Log.Format)
	assert.Equal(t, DefaultMetricsJob, def.Metrics.Job)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEYROTATOR_DEBUG", "true")
	t.Setenv("KEYROTATOR_LEDGER_SSM_PARAMETER", "/ops/keyrotator/last-run")

	path := writeConfig(t, `
version: 1
aws:
  region: us-west-2
notifier:
  type: sns
  sns_topic_arn: `+testTopic+`
ledger:
  type: ssm
schedule:
  cron: "0 6 * * *"
log:
  format: json
`)

	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "us-west-2", def.AWS.Region)
	assert.Equal(t, LedgerSSM, def.Ledger.Type)
	assert.Equal(t, "/ops/keyrotator/last-run", def.Ledger.SSMParameter)
	assert.Equal(t, "0 6 * * *", def.Schedule.Cron)
	assert.Equal(t, "json", def.Log.Format)
	assert.True(t, def.Log.Debug)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is already present, even when empty
	require.NoError(t, os.Unsetenv("SNS_TOPIC_ARN"))

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SNS_TOPIC_ARN="+testTopic+"\n"), 0600))

	cfg := &Config{EnvFile: envFile}
	require.NoError(t, cfg.Load())
	assert.Equal(t, testTopic, cfg.Definition.Notifier.SNSTopicARN)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNS_TOPIC_ARN", testTopic)

	cfg := &Config{EnvFile: filepath.Join(t.TempDir(), "missing.env")}
	require.NoError(t, cfg.Load())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	cfg := &Config{Path: "/nonexistent/path/to/keyrotator.yaml"}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "notifier:\n  type: sns\n bad syntax here [[[\n")
	err := (&Config{Path: path}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML syntax")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name:     "sns without topic",
			yaml:     "notifier:\n  type: sns\n",
			contains: "notifier.sns_topic_arn",
		},
		{
			name:     "malformed topic arn",
			yaml:     "notifier:\n  sns_topic_arn: not-an-arn\n",
			contains: "schema validation failed",
		},
		{
			name:     "unknown notifier type",
			yaml:     "notifier:\n  type: pigeon\n",
			contains: "schema validation failed",
		},
		{
			name:     "webhook without url",
			yaml:     "notifier:\n  type: webhook\n",
			contains: "notifier.webhook_url",
		},
		{
			name:     "unsupported version",
			yaml:     "version: 2\nnotifier:\n  sns_topic_arn: " + testTopic + "\n",
			contains: "schema validation failed",
		},
		{
			name:     "bad cron",
			yaml:     "notifier:\n  sns_topic_arn: " + testTopic + "\nschedule:\n  cron: every day\n",
			contains: "invalid cron expression",
		},
		{
			name:     "half static credentials",
			yaml:     "aws:\n  access_key_id: AKIAEXAMPLE\nnotifier:\n  sns_topic_arn: " + testTopic + "\n",
			contains: "static credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			err := (&Config{Path: writeConfig(t, tt.yaml)}).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoad_WebhookNotifier(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEYROTATOR_NOTIFIER", NotifierWebhook)
	t.Setenv("KEYROTATOR_WEBHOOK_URL", "https://hooks.example.com/rotation")

	cfg := &Config{}
	require.NoError(t, cfg.Load())
	assert.Equal(t, "https://hooks.example.com/rotation", cfg.Definition.Notifier.WebhookURL)
	assert.Equal(t, 10000, cfg.Definition.Notifier.TimeoutMs)
}

func TestApplyDefaults_FileLedgerDir(t *testing.T) {
	t.Setenv("KEYROTATOR_LEDGER_DIR", "/var/lib/keyrotator")

	def := &Definition{Ledger: LedgerConfig{Type: LedgerFile}}
	def.ApplyDefaults()
	assert.Equal(t, "/var/lib/keyrotator", def.Ledger.Dir)
	assert.Equal(t, DefaultHistoryLimit, def.Ledger.HistoryLimit)
}

func TestLoad_FlagOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNS_TOPIC_ARN", testTopic)
	t.Setenv("KEYROTATOR_LOG_FORMAT", logging.FormatLogfmt)

	cfg := &Config{Debug: true, LogFormat: logging.FormatJSON}
	require.NoError(t, cfg.Load())
	assert.True(t, cfg.Definition.Log.Debug)
	assert.Equal(t, logging.FormatJSON, cfg.Definition.Log.Format)
}
