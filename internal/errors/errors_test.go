package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/systmms/keyrotator/internal/errors"
)

func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "notifier.sns_topic_arn",
		Value:      "not-an-arn",
		Message:    "invalid topic ARN",
		Suggestion: "Use format: arn:aws:sns:<region>:<account>:<topic>",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "notifier.sns_topic_arn")
	assert.Contains(t, errMsg, "not-an-arn")
	assert.Contains(t, errMsg, "invalid topic ARN")
}

func TestProviderErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		err      error
		contains string
	}{
		{
			name:     "iam access denied",
			provider: "iam",
			err:      &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"},
			contains: "iam:CreateAccessKey",
		},
		{
			name:     "sns authorization error",
			provider: "sns",
			err:      &smithy.GenericAPIError{Code: "AuthorizationError"},
			contains: "sns:Publish",
		},
		{
			name:     "throttling",
			provider: "iam",
			err:      &smithy.GenericAPIError{Code: "Throttling"},
			contains: "rate limit",
		},
		{
			name:     "key limit",
			provider: "iam",
			err:      &smithy.GenericAPIError{Code: "LimitExceeded"},
			contains: "maximum number of access keys",
		},
		{
			name:     "wrapped api error",
			provider: "iam",
			err:      fmt.Errorf("list users: %w", &smithy.GenericAPIError{Code: "NoSuchEntity"}),
			contains: "no longer exists",
		},
		{
			name:     "plain connection error",
			provider: "sns",
			err:      stderrors.New("dial tcp: connection refused"),
			contains: "Unable to connect",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := errors.ProviderError(tt.provider, "test", tt.err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.True(t, stderrors.Is(err, tt.err))
		})
	}
}

func TestAPIErrorCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "NoSuchEntity", errors.APIErrorCode(&smithy.GenericAPIError{Code: "NoSuchEntity"}))
	assert.Equal(t, "", errors.APIErrorCode(stderrors.New("boom")))
	assert.Equal(t, "", errors.APIErrorCode(nil))
}
