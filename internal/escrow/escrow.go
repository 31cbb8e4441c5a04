// Package escrow copies newly issued access keys into AWS Secrets Manager so
// a consumer can fetch them without reading the notification.
package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/systmms/keyrotator/internal/directory"
	dserrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/logging"
)

// Escrow stores a freshly created credential for an identity.
type Escrow interface {
	Store(ctx context.Context, identity string, cred *directory.NewCredential) error
}

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager operations
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

type secretPayload struct {
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
}

// SecretsManagerEscrow writes {prefix}{identity} as a JSON key pair.
type SecretsManagerEscrow struct {
	client SecretsManagerClientAPI
	prefix string
	logger *logging.Logger
}

// NewSecretsManagerEscrow creates an escrow writing under prefix.
func NewSecretsManagerEscrow(client SecretsManagerClientAPI, prefix string, logger *logging.Logger) *SecretsManagerEscrow {
	return &SecretsManagerEscrow{client: client, prefix: prefix, logger: logger}
}

// NewSecretsManagerEscrowFromConfig creates an escrow with a real Secrets Manager client.
func NewSecretsManagerEscrowFromConfig(cfg aws.Config, prefix string, logger *logging.Logger) *SecretsManagerEscrow {
	return NewSecretsManagerEscrow(secretsmanager.NewFromConfig(cfg), prefix, logger)
}

// SecretName returns the secret name used for identity.
func (e *SecretsManagerEscrow) SecretName(identity string) string {
	return e.prefix + identity
}

// Store puts a new secret version, creating the secret the first time.
func (e *SecretsManagerEscrow) Store(ctx context.Context, identity string, cred *directory.NewCredential) error {
	secret, err := cred.Secret.Reveal()
	if err != nil {
		return fmt.Errorf("failed to read secret for %s: %w", cred.ID, err)
	}

	data, err := json.Marshal(secretPayload{AccessKeyID: cred.ID, SecretAccessKey: secret})
	if err != nil {
		return fmt.Errorf("failed to marshal escrow payload: %w", err)
	}
	name := e.SecretName(identity)

	_, err = e.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(string(data)),
	})
	if err == nil {
		e.logger.Info("Stored access key %s in secret %s", cred.ID, name)
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return dserrors.ProviderError("secretsmanager", "PutSecretValue", err)
	}

	_, err = e.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		Description:  aws.String(fmt.Sprintf("Access key for IAM user %s", identity)),
		SecretString: aws.String(string(data)),
		Tags:         []types.Tag{{Key: aws.String("ManagedBy"), Value: aws.String("keyrotator")}},
	})
	if err != nil {
		return dserrors.ProviderError("secretsmanager", "CreateSecret", err)
	}

	e.logger.Info("Created secret %s for access key %s", name, cred.ID)
	return nil
}
