package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderError wraps a failed call to an AWS service with the operation name and a suggestion.
// The original error stays reachable through errors.As / errors.Is.
func ProviderError(provider string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s", provider, operation),
		Details:    err.Error(),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

// APIErrorCode returns the AWS API error code carried by err, or "" when err is not an API error.
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// getProviderSuggestion returns helpful suggestions based on provider and error
func getProviderSuggestion(provider string, err error) string {
	code := APIErrorCode(err)

	switch code {
	case "AccessDenied", "AccessDeniedException", "AuthorizationError", "UnauthorizedOperation":
		switch provider {
		case "iam":
			return "Grant iam:ListUsers, iam:ListUserTags, iam:ListAccessKeys, iam:GetAccessKeyLastUsed, iam:CreateAccessKey, iam:UpdateAccessKey and iam:DeleteAccessKey"
		case "sns":
			return "Grant sns:Publish on the notification topic"
		case "ssm":
			return "Grant ssm:GetParameter, ssm:GetParameterHistory and ssm:PutParameter on the ledger parameter"
		case "secretsmanager":
			return "Grant secretsmanager:CreateSecret and secretsmanager:PutSecretValue under the escrow prefix"
		}
		return "Check the IAM permissions of the credentials in use"
	case "Throttling", "ThrottlingException", "ThrottledException", "RequestLimitExceeded":
		return "AWS rate limit exceeded. Wait a moment and run again"
	case "NoSuchEntity", "NoSuchEntityException":
		return "The user or access key no longer exists. It may have been changed by another process"
	case "LimitExceeded", "LimitExceededException":
		return "The user already has the maximum number of access keys (2)"
	case "NotFound", "NotFoundException":
		return "Verify the SNS topic ARN and region"
	case "InvalidClientTokenId", "ExpiredToken", "ExpiredTokenException":
		return "Refresh AWS credentials: set AWS_PROFILE or renew the session"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "no EC2 IMDS role found") || strings.Contains(errStr, "failed to retrieve credentials") {
		return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
	}
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and endpoint configuration"
	}

	return ""
}
