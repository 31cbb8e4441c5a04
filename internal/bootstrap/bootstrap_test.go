package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/directory"
	"github.com/systmms/keyrotator/internal/escrow"
	"github.com/systmms/keyrotator/internal/ledger"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/metrics"
	"github.com/systmms/keyrotator/internal/notify"
	"github.com/systmms/keyrotator/tests/fakes"
)

func definition() *config.Definition {
	def := &config.Definition{
		Notifier: config.NotifierConfig{SNSTopicARN: "arn:aws:sns:us-east-1:123456789012:key-rotation"},
	}
	def.ApplyDefaults()
	return def
}

func TestFromAWSConfig_Defaults(t *testing.T) {
	t.Parallel()

	c, err := FromAWSConfig(definition(), aws.Config{Region: "us-east-1"}, logging.Nop())
	require.NoError(t, err)

	assert.IsType(t, &notify.SNSNotifier{}, c.Notifier)
	assert.IsType(t, ledger.Nop{}, c.Ledger)
	assert.Nil(t, c.Escrow)
	assert.NotNil(t, c.Metrics)
	assert.NotNil(t, c.Evaluator())
}

func TestFromAWSConfig_Alternatives(t *testing.T) {
	t.Parallel()

	def := definition()
	def.Notifier.Type = config.NotifierWebhook
	def.Notifier.WebhookURL = "https://hooks.example.com/rotation"
	def.Ledger = config.LedgerConfig{Type: config.LedgerFile, Dir: t.TempDir(), HistoryLimit: 5}
	def.Escrow.SecretsManagerPrefix = "iam/"

	c, err := FromAWSConfig(def, aws.Config{Region: "us-east-1"}, logging.Nop())
	require.NoError(t, err)

	assert.IsType(t, &notify.WebhookNotifier{}, c.Notifier)
	assert.IsType(t, &ledger.FileLedger{}, c.Ledger)
	assert.IsType(t, &escrow.SecretsManagerEscrow{}, c.Escrow)

	assert.IsType(t, &ledger.SSMLedger{}, NewLedger(config.LedgerConfig{Type: config.LedgerSSM, SSMParameter: "/p"}, aws.Config{}))
}

func TestNewNotifier_Unknown(t *testing.T) {
	t.Parallel()

	_, err := NewNotifier(config.NotifierConfig{Type: "carrier-pigeon"}, aws.Config{}, logging.Nop())
	assert.Error(t, err)
}

func TestRunOnce_PushesMetrics(t *testing.T) {
	t.Parallel()

	var pushed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		pushed.Store(req.URL.Path == "/metrics/job/keyrotator")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runAt := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	iam := fakes.NewFakeIAMClient()
	iam.AddUser("alice", map[string]string{"Owner": "alice@example.com"})
	iam.AddKey("alice", "AKIAOLD", runAt.Add(-90*24*time.Hour))
	sns := fakes.NewFakeSNSClient("topic")

	def := definition()
	def.Metrics.PushgatewayURL = srv.URL

	c := &Components{
		Definition: def,
		Directory:  directory.NewIAMGateway(iam, logging.Nop()),
		Notifier:   notify.NewSNSNotifier(sns, "topic", logging.Nop()),
		Ledger:     ledger.Nop{},
		Metrics:    metrics.NewRecorder(),
		Logger:     logging.Nop(),
		clock:      func() time.Time { return runAt },
	}

	summary, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Actions["create"])
	assert.Len(t, sns.Messages(), 1)
	assert.True(t, pushed.Load())
}
