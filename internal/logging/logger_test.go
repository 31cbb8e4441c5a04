package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "secret is redacted",
			input:    "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY",
			expected: "[REDACTED]",
		},
		{
			name:     "empty secret is still redacted",
			input:    "",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Secret(tt.input).String())
			assert.Equal(t, tt.expected, Secret(tt.input).GoString())
		})
	}
}

func TestLoggerLogfmtOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, FormatLogfmt)

	logger.Info("Creating a new access key for %s", "alice")
	logger.Warn("skipping %d identities", 2)

	out := buf.String()
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, `msg="Creating a new access key for alice"`)
	assert.Contains(t, out, "level=warn")
	assert.Contains(t, out, "ts=")
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, FormatJSON).With("user", "alice")

	logger.Error("publish failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "publish failed", line["msg"])
	assert.Equal(t, "alice", line["user"])
}

func TestLoggerDebugMode(t *testing.T) {
	var quiet, loud bytes.Buffer

	NewWithWriter(&quiet, false, FormatLogfmt).Debug("hidden")
	NewWithWriter(&loud, true, FormatLogfmt).Debug("shown")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "level=debug")
	assert.Contains(t, loud.String(), "shown")
}

func TestLoggerRedactsSecretArguments(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, FormatLogfmt)

	secret := "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"
	logger.Info("secret key %s", Secret(secret))
	logger.Debug("secret key %v", Secret(secret))
	logger.With("secret", Secret(secret)).Info("bound field")

	out := buf.String()
	assert.NotContains(t, out, secret)
	assert.Equal(t, 3, strings.Count(out, "[REDACTED]"))
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	assert.NotPanics(t, func() {
		logger.Info("info")
		logger.With("k", "v").Error("error")
	})
}
