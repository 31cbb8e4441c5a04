package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	dserrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/logging"
)

// SNS limits subjects to 100 characters.
const maxSubjectLength = 100

// SNSClientAPI defines the subset of SNS operations used by SNSNotifier.
type SNSClientAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

// SNSNotifier publishes to a single SNS topic.
type SNSNotifier struct {
	client   SNSClientAPI
	topicARN string
	logger   *logging.Logger
}

// NewSNSNotifier creates a notifier for topicARN.
func NewSNSNotifier(client SNSClientAPI, topicARN string, logger *logging.Logger) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN, logger: logger}
}

// NewSNSNotifierFromConfig creates a notifier with a real SNS client.
func NewSNSNotifierFromConfig(cfg aws.Config, topicARN string, logger *logging.Logger) *SNSNotifier {
	return NewSNSNotifier(sns.NewFromConfig(cfg), topicARN, logger)
}

// Name returns "sns".
func (n *SNSNotifier) Name() string {
	return "sns"
}

// Publish sends body to the topic.
func (n *SNSNotifier) Publish(ctx context.Context, body, subject string) (string, error) {
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(body),
		Subject:  aws.String(truncateSubject(subject)),
	})
	if err != nil {
		return "", dserrors.ProviderError("sns", "Publish", err)
	}

	messageID := aws.ToString(out.MessageId)
	n.logger.Info("SNS notified with MessageId %s", messageID)
	return messageID, nil
}

// Validate checks that the topic exists and is visible to the caller.
func (n *SNSNotifier) Validate(ctx context.Context) error {
	if _, err := n.client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(n.topicARN)}); err != nil {
		return dserrors.ProviderError("sns", "GetTopicAttributes", err)
	}
	return nil
}

func truncateSubject(subject string) string {
	runes := []rune(subject)
	if len(runes) <= maxSubjectLength {
		return subject
	}
	return string(runes[:maxSubjectLength])
}
