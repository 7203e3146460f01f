package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestNewWithWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown", "email", "a@x.io")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, Name, lines[0]["logger"])
	assert.Equal(t, "a@x.io", lines[0]["email"])
}

func TestNewWithWriterUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud")

	logger.Debug("hidden")
	logger.Info("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestNewWithWriterRichErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	err := goerrors.New("profile store is not provisioned", goerrors.CategoryNotFound).
		WithTextCode("PROFILE_STORE_MISSING")
	logger.Error("reconcile failed", "error", err)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "PROFILE_STORE_MISSING", lines[0]["text_code"])
	assert.Equal(t, "not_found", lines[0]["category"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	require.NotNil(t, logger)
	logger.Error("dropped", "error", goerrors.New("x", goerrors.CategoryInternal))
}
