package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyrotator/internal/directory"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/secure"
	"github.com/systmms/keyrotator/tests/fakes"
)

func newCredential(t *testing.T, id, secret string) *directory.NewCredential {
	t.Helper()
	cred := &directory.NewCredential{ID: id, CreatedAt: time.Now(), Secret: secure.NewSecureString(secret)}
	t.Cleanup(cred.Secret.Destroy)
	return cred
}

func TestStore_CreatesThenUpdates(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	e := NewSecretsManagerEscrow(client, "iam/keys/", logging.Nop())

	require.NoError(t, e.Store(context.Background(), "alice", newCredential(t, "AKIA1", "s1")))
	assert.Equal(t, []string{"iam/keys/alice"}, client.SecretNames())
	assert.Equal(t, 1, client.Versions["iam/keys/alice"])

	require.NoError(t, e.Store(context.Background(), "alice", newCredential(t, "AKIA2", "s2")))
	assert.Equal(t, 2, client.Versions["iam/keys/alice"])

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(client.Secrets["iam/keys/alice"]), &payload))
	assert.Equal(t, map[string]string{"AccessKeyId": "AKIA2", "SecretAccessKey": "s2"}, payload)
}

func TestStore_Error(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	client.Err = errors.New("AccessDenied")
	e := NewSecretsManagerEscrow(client, "", logging.Nop())

	err := e.Store(context.Background(), "alice", newCredential(t, "AKIA1", "s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secretsmanager provider error during PutSecretValue")
}

func TestStore_DestroyedSecret(t *testing.T) {
	t.Parallel()

	e := NewSecretsManagerEscrow(fakes.NewFakeSecretsManagerClient(), "", logging.Nop())
	cred := newCredential(t, "AKIA1", "s1")
	cred.Secret.Destroy()

	err := e.Store(context.Background(), "alice", cred)
	assert.ErrorIs(t, err, secure.ErrDestroyed)
}
