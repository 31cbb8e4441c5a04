package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyrotator/internal/logging"
)

const hookURL = "https://hooks.example.com/rotation"

func newMockedWebhook(t *testing.T, retries int) *WebhookNotifier {
	t.Helper()

	n := NewWebhookNotifier(WebhookConfig{
		URL:          hookURL,
		Headers:      map[string]string{"Authorization": "Bearer token"},
		RetryCount:   retries,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	}, logging.Nop())
	httpmock.ActivateNonDefault(n.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return n
}

func TestWebhookNotifier_Publish(t *testing.T) {
	n := newMockedWebhook(t, 0)

	var got webhookPayload
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
		}
		return httpmock.NewJsonResponse(http.StatusAccepted, map[string]string{"id": "evt-42"})
	})

	id, err := n.Publish(context.Background(), "Access Key: AKIA\n", "New access keys created for user alice")
	require.NoError(t, err)
	assert.Equal(t, "evt-42", id)
	assert.Equal(t, "New access keys created for user alice", got.Subject)
	assert.Equal(t, "Access Key: AKIA\n", got.Message)
	assert.Equal(t, "keyrotator", got.Source)
}

func TestWebhookNotifier_FallbackMessageID(t *testing.T) {
	n := newMockedWebhook(t, 0)

	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusNoContent, "")
		resp.Header.Set("X-Request-Id", "req-7")
		return resp, nil
	})

	id, err := n.Publish(context.Background(), "body", "subject")
	require.NoError(t, err)
	assert.Equal(t, "req-7", id)
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	n := newMockedWebhook(t, 2)

	attempts := 0
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"id": "evt-3"})
	})

	id, err := n.Publish(context.Background(), "body", "subject")
	require.NoError(t, err)
	assert.Equal(t, "evt-3", id)
	assert.Equal(t, 3, attempts)
}

func TestWebhookNotifier_ClientErrorFails(t *testing.T) {
	n := newMockedWebhook(t, 2)

	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusUnauthorized, "nope"))

	_, err := n.Publish(context.Background(), "body", "subject")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestWebhookNotifier_TransportErrorNotResent(t *testing.T) {
	n := newMockedWebhook(t, 2)

	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewErrorResponder(errors.New("read: connection reset by peer")))

	_, err := n.Publish(context.Background(), "Secret Key: s3cr3t", "New access keys created for user alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook request failed")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestWebhookNotifier_Validate(t *testing.T) {
	n := newMockedWebhook(t, 0)

	httpmock.RegisterResponder(http.MethodHead, hookURL, httpmock.NewStringResponder(http.StatusMethodNotAllowed, ""))
	assert.NoError(t, n.Validate(context.Background()))
	assert.Equal(t, "webhook", n.Name())
}
