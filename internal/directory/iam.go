package directory

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	dserrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/secure"
)

// IAMClientAPI defines the subset of IAM operations used by IAMGateway.
// This allows for mocking in tests
type IAMClientAPI interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListUserTags(ctx context.Context, params *iam.ListUserTagsInput, optFns ...func(*iam.Options)) (*iam.ListUserTagsOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	GetAccessKeyLastUsed(ctx context.Context, params *iam.GetAccessKeyLastUsedInput, optFns ...func(*iam.Options)) (*iam.GetAccessKeyLastUsedOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
}

// IAMGateway implements Gateway on top of AWS IAM users and access keys.
type IAMGateway struct {
	client IAMClientAPI
	logger *logging.Logger
}

// NewIAMGateway creates a gateway from an IAM client.
func NewIAMGateway(client IAMClientAPI, logger *logging.Logger) *IAMGateway {
	return &IAMGateway{client: client, logger: logger}
}

// NewIAMGatewayFromConfig creates a gateway with a real IAM client.
func NewIAMGatewayFromConfig(cfg aws.Config, logger *logging.Logger) *IAMGateway {
	return NewIAMGateway(iam.NewFromConfig(cfg), logger)
}

// ListIdentities walks every page of ListUsers.
func (g *IAMGateway) ListIdentities(ctx context.Context) ([]string, error) {
	var users []string

	paginator := iam.NewListUsersPaginator(g.client, &iam.ListUsersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dserrors.ProviderError("iam", "ListUsers", err)
		}
		for _, user := range page.Users {
			users = append(users, aws.ToString(user.UserName))
		}
	}

	g.logger.Debug("Listed %d users", len(users))
	return users, nil
}

// OwnerEmail scans the user's tags for OwnerTagKey. An empty value counts as absent.
func (g *IAMGateway) OwnerEmail(ctx context.Context, user string) (string, bool, error) {
	input := &iam.ListUserTagsInput{UserName: aws.String(user)}
	for {
		out, err := g.client.ListUserTags(ctx, input)
		if err != nil {
			return "", false, dserrors.ProviderError("iam", "ListUserTags", err)
		}

		for _, tag := range out.Tags {
			if aws.ToString(tag.Key) == OwnerTagKey {
				email := aws.ToString(tag.Value)
				if email == "" {
					return "", false, nil
				}
				g.logger.Info("Email for user %s is %s", user, email)
				return email, true, nil
			}
		}

		if !out.IsTruncated || out.Marker == nil {
			return "", false, nil
		}
		input.Marker = out.Marker
	}
}

// ListCredentials returns the user's access key metadata in the order IAM reports it.
func (g *IAMGateway) ListCredentials(ctx context.Context, user string) ([]Credential, error) {
	var creds []Credential

	paginator := iam.NewListAccessKeysPaginator(g.client, &iam.ListAccessKeysInput{UserName: aws.String(user)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dserrors.ProviderError("iam", "ListAccessKeys", err)
		}
		for _, meta := range page.AccessKeyMetadata {
			creds = append(creds, Credential{
				ID:        aws.ToString(meta.AccessKeyId),
				CreatedAt: aws.ToTime(meta.CreateDate),
				Status:    Status(meta.Status),
			})
		}
	}

	return creds, nil
}

// KeyEverUsed reports whether IAM has recorded a LastUsedDate for the key.
func (g *IAMGateway) KeyEverUsed(ctx context.Context, keyID string) (bool, error) {
	out, err := g.client.GetAccessKeyLastUsed(ctx, &iam.GetAccessKeyLastUsedInput{AccessKeyId: aws.String(keyID)})
	if err != nil {
		return false, dserrors.ProviderError("iam", "GetAccessKeyLastUsed", err)
	}

	if out.AccessKeyLastUsed != nil && out.AccessKeyLastUsed.LastUsedDate != nil {
		g.logger.Info("Access key %s has been used", keyID)
		return true, nil
	}
	g.logger.Info("Access key %s has never been used", keyID)
	return false, nil
}

// CreateCredential issues a new access key. The secret is moved into a secure buffer straight away.
func (g *IAMGateway) CreateCredential(ctx context.Context, user string) (*NewCredential, error) {
	out, err := g.client.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String(user)})
	if err != nil {
		return nil, dserrors.ProviderError("iam", "CreateAccessKey", err)
	}
	if out.AccessKey == nil {
		return nil, dserrors.UserError{Message: "IAM returned no access key for " + user}
	}

	return &NewCredential{
		ID:        aws.ToString(out.AccessKey.AccessKeyId),
		CreatedAt: aws.ToTime(out.AccessKey.CreateDate),
		Secret:    secure.NewSecureString(aws.ToString(out.AccessKey.SecretAccessKey)),
	}, nil
}

// SetCredentialStatus updates the key's status.
func (g *IAMGateway) SetCredentialStatus(ctx context.Context, user, keyID string, status Status) error {
	_, err := g.client.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
		UserName:    aws.String(user),
		AccessKeyId: aws.String(keyID),
		Status:      types.StatusType(status),
	})
	if err != nil {
		return dserrors.ProviderError("iam", "UpdateAccessKey", err)
	}
	return nil
}

// DeleteCredential deletes the key.
func (g *IAMGateway) DeleteCredential(ctx context.Context, user, keyID string) error {
	_, err := g.client.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
		UserName:    aws.String(user),
		AccessKeyId: aws.String(keyID),
	})
	if err != nil {
		return dserrors.ProviderError("iam", "DeleteAccessKey", err)
	}
	return nil
}
