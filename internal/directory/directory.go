// Package directory exposes the identity-management operations the rotation policy needs:
// enumerate users, read their access keys and Owner tag, and create, deactivate or delete keys.
package directory

import (
	"context"
	"time"

	"github.com/systmms/keyrotator/internal/secure"
)

// OwnerTagKey is the user tag holding the owner's email address.
const OwnerTagKey = "Owner"

// Status is the state of an access key.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Credential is the metadata of one long-lived access key.
type Credential struct {
	ID        string
	CreatedAt time.Time
	Status    Status
}

// NewCredential is a freshly issued access key. Secret holds the secret access key;
// Destroy it once it has been delivered.
type NewCredential struct {
	ID        string
	CreatedAt time.Time
	Secret    *secure.SecureBuffer
}

// Gateway is the directory the rotation policy reads from and mutates.
type Gateway interface {
	// ListIdentities returns every user name in the account.
	ListIdentities(ctx context.Context) ([]string, error)

	// OwnerEmail returns the value of the Owner tag. ok is false when the tag is absent or empty.
	OwnerEmail(ctx context.Context, user string) (email string, ok bool, err error)

	// ListCredentials returns the user's access keys (0 to 2 under normal conditions).
	ListCredentials(ctx context.Context, user string) ([]Credential, error)

	// KeyEverUsed reports whether the key has a last-used timestamp.
	KeyEverUsed(ctx context.Context, keyID string) (bool, error)

	// CreateCredential issues a new access key for the user.
	CreateCredential(ctx context.Context, user string) (*NewCredential, error)

	// SetCredentialStatus activates or deactivates a key.
	SetCredentialStatus(ctx context.Context, user, keyID string, status Status) error

	// DeleteCredential removes a key permanently.
	DeleteCredential(ctx context.Context, user, keyID string) error
}
