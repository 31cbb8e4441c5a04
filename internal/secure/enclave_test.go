package secure

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureStringReveal(t *testing.T) {
	t.Parallel()

	buf := NewSecureString("wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY")
	defer buf.Destroy()

	got, err := buf.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", got)

	// revealing twice works; the enclave stays sealed between calls
	again, err := buf.Reveal()
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestRevealOutlivesLockedBuffer(t *testing.T) {
	t.Parallel()

	buf := NewSecureString("AKIA-paired-secret-value")
	got, err := buf.Reveal()
	require.NoError(t, err)
	buf.Destroy()
	runtime.GC()

	body := "Secret Key: " + got + "\n"
	assert.Equal(t, "Secret Key: AKIA-paired-secret-value\n", body)
	assert.Equal(t, 2, strings.Count(strings.Repeat(got, 2), "secret-value"))
}

func TestSecureBufferWipesSource(t *testing.T) {
	t.Parallel()

	src := []byte("secret-material")
	buf := NewSecureBuffer(src)
	defer buf.Destroy()

	assert.NotEqual(t, "secret-material", string(src))
}

func TestSecureBufferEmpty(t *testing.T) {
	t.Parallel()

	buf := NewSecureString("")
	got, err := buf.Reveal()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSecureBufferDestroy(t *testing.T) {
	t.Parallel()

	buf := NewSecureString("secret")
	buf.Destroy()
	buf.Destroy()

	_, err := buf.Reveal()
	assert.ErrorIs(t, err, ErrDestroyed)

	var nilBuf *SecureBuffer
	assert.NotPanics(t, nilBuf.Destroy)
}

func TestSecureBufferNeverFormatsPlaintext(t *testing.T) {
	t.Parallel()

	buf := NewSecureString("secret")
	defer buf.Destroy()

	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", buf))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", buf))
}

func TestPurge(t *testing.T) {
	old := NewSecureString("before-purge")
	defer old.Destroy()

	Purge()

	_, err := old.Reveal()
	assert.Error(t, err)

	fresh := NewSecureString("after-purge")
	defer fresh.Destroy()
	got, err := fresh.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "after-purge", got)
}
