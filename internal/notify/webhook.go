package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/systmms/keyrotator/internal/logging"
)

// WebhookConfig holds configuration for webhook notifications.
type WebhookConfig struct {
	// URL is the webhook endpoint URL.
	URL string

	// Headers are additional HTTP headers to include.
	Headers map[string]string

	// Timeout for each HTTP request (default: 10s).
	Timeout time.Duration

	// RetryCount is the number of retries after the first attempt on 429/5xx responses.
	// Transport errors are not retried.
	RetryCount int

	// RetryWait is the initial wait between retries, doubled up to RetryMaxWait.
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// webhookPayload is the JSON body POSTed to the endpoint.
type webhookPayload struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

type webhookResponse struct {
	ID string `json:"id"`
}

// WebhookNotifier POSTs notifications as JSON to a fixed URL.
type WebhookNotifier struct {
	config WebhookConfig
	client *resty.Client
	logger *logging.Logger
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(config WebhookConfig, logger *logging.Logger) *WebhookNotifier {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryWait == 0 {
		config.RetryWait = time.Second
	}
	if config.RetryMaxWait == 0 {
		config.RetryMaxWait = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(config.RetryMaxWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "keyrotator").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// a transport error may follow a delivered request; never resend the body
			if err != nil || r == nil {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	client.SetHeaders(config.Headers)

	return &WebhookNotifier{config: config, client: client, logger: logger}
}

// Name returns "webhook".
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Publish POSTs the notification. The delivery id is the response's "id" field,
// the X-Request-Id header, or a generated UUID, in that order.
func (n *WebhookNotifier) Publish(ctx context.Context, body, subject string) (string, error) {
	result := &webhookResponse{}
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Subject: subject, Message: body, Source: "keyrotator"}).
		SetResult(result).
		Post(n.config.URL)
	if err != nil {
		return "", fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	messageID := result.ID
	if messageID == "" {
		messageID = resp.Header().Get("X-Request-Id")
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	n.logger.Info("Webhook notified with MessageId %s", messageID)
	return messageID, nil
}

// Validate sends a HEAD request; any response below 500 means the endpoint is reachable.
func (n *WebhookNotifier) Validate(ctx context.Context) error {
	resp, err := n.client.R().SetContext(ctx).Head(n.config.URL)
	if err != nil {
		return fmt.Errorf("webhook unreachable: %w", err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
