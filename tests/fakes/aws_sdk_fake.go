package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// PublishedMessage is one message captured by FakeSNSClient.
type PublishedMessage struct {
	TopicARN string
	Subject  string
	Message  string
}

// FakeSNSClient is a mock implementation of notify.SNSClientAPI
type FakeSNSClient struct {
	mu sync.Mutex

	Published []PublishedMessage
	// Topics lists the topic ARNs GetTopicAttributes knows about
	Topics map[string]bool
	// PublishErr is returned by Publish when set
	PublishErr error
}

// NewFakeSNSClient creates a fake with the given topics.
func NewFakeSNSClient(topics ...string) *FakeSNSClient {
	f := &FakeSNSClient{Topics: make(map[string]bool)}
	for _, t := range topics {
		f.Topics[t] = true
	}
	return f
}

// Publish mocks the Publish operation
func (f *FakeSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishErr != nil {
		return nil, f.PublishErr
	}
	f.Published = append(f.Published, PublishedMessage{
		TopicARN: aws.ToString(params.TopicArn),
		Subject:  aws.ToString(params.Subject),
		Message:  aws.ToString(params.Message),
	})
	return &sns.PublishOutput{MessageId: aws.String(fmt.Sprintf("msg-%04d", len(f.Published)))}, nil
}

// GetTopicAttributes mocks the GetTopicAttributes operation
func (f *FakeSNSClient) GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error) {
	arn := aws.ToString(params.TopicArn)
	if !f.Topics[arn] {
		return nil, &snstypes.NotFoundException{Message: aws.String("Topic does not exist")}
	}
	return &sns.GetTopicAttributesOutput{Attributes: map[string]string{"TopicArn": arn}}, nil
}

// Messages returns a copy of everything published so far.
func (f *FakeSNSClient) Messages() []PublishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PublishedMessage(nil), f.Published...)
}

// ParameterData holds the data for a mock SSM parameter
type ParameterData struct {
	Value            string
	Version          int64
	LastModifiedDate time.Time
}

// FakeSSMClient is a mock implementation of ledger.SSMClientAPI keeping full parameter history
type FakeSSMClient struct {
	mu sync.Mutex

	// History maps parameter names to their versions, oldest first
	History map[string][]ParameterData
	// Err is returned by every call when set
	Err error
}

// NewFakeSSMClient creates a new mock SSM client
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{History: make(map[string][]ParameterData)}
}

// GetParameter mocks the GetParameter operation
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	versions := f.History[aws.ToString(params.Name)]
	if len(versions) == 0 {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("parameter not found")}
	}
	latest := versions[len(versions)-1]
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{
		Name:             params.Name,
		Value:            aws.String(latest.Value),
		Version:          latest.Version,
		LastModifiedDate: aws.Time(latest.LastModifiedDate),
		Type:             ssmtypes.ParameterTypeString,
	}}, nil
}

// PutParameter mocks the PutParameter operation
func (f *FakeSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.Name)
	versions := f.History[name]
	if len(versions) > 0 && !aws.ToBool(params.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("parameter already exists")}
	}
	next := int64(len(versions) + 1)
	f.History[name] = append(versions, ParameterData{Value: aws.ToString(params.Value), Version: next, LastModifiedDate: time.Now()})
	return &ssm.PutParameterOutput{Version: next}, nil
}

// GetParameterHistory mocks the GetParameterHistory operation. A single page, oldest first.
func (f *FakeSSMClient) GetParameterHistory(ctx context.Context, params *ssm.GetParameterHistoryInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterHistoryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	versions, ok := f.History[aws.ToString(params.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("parameter not found")}
	}
	out := &ssm.GetParameterHistoryOutput{}
	for _, v := range versions {
		out.Parameters = append(out.Parameters, ssmtypes.ParameterHistory{
			Name:             params.Name,
			Value:            aws.String(v.Value),
			Version:          v.Version,
			LastModifiedDate: aws.Time(v.LastModifiedDate),
		})
	}
	return out, nil
}

// FakeSecretsManagerClient is a mock implementation of escrow.SecretsManagerClientAPI
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their current string value
	Secrets map[string]string
	// Versions counts writes per secret
	Versions map[string]int
	// Err is returned by every call when set
	Err error
}

// NewFakeSecretsManagerClient creates a new mock Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets:  make(map[string]string),
		Versions: make(map[string]int),
	}
}

// CreateSecret mocks the CreateSecret operation
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.Name)
	if _, exists := f.Secrets[name]; exists {
		return nil, &smtypes.ResourceExistsException{Message: aws.String("secret already exists: " + name)}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	f.Versions[name]++
	return &secretsmanager.CreateSecretOutput{
		ARN:       aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", name)),
		Name:      params.Name,
		VersionId: aws.String(fmt.Sprintf("v%d", f.Versions[name])),
	}, nil
}

// PutSecretValue mocks the PutSecretValue operation
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.SecretId)
	if _, exists := f.Secrets[name]; !exists {
		return nil, &smtypes.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
		}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	f.Versions[name]++
	return &secretsmanager.PutSecretValueOutput{
		ARN:       aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", name)),
		Name:      params.SecretId,
		VersionId: aws.String(fmt.Sprintf("v%d", f.Versions[name])),
	}, nil
}

// SecretNames returns the stored secret names in sorted order.
func (f *FakeSecretsManagerClient) SecretNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
