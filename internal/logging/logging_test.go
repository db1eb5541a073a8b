package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/reasoningbank/internal/config"
	"github.com/liliang-cn/reasoningbank/pkg/core"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	z, err := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger := core.NewZapLogger(z)
	logger.Debug("dropped")
	logger.Info("memory added", "memory_id", "abc")
	require.NoError(t, z.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "memory added", entry["msg"])
	assert.Equal(t, "abc", entry["memory_id"])
	assert.Contains(t, entry, "ts")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	z, err := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "console"}, &buf)
	require.NoError(t, err)

	z.Info("hidden")
	z.Warn("full-text index unavailable")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "full-text index unavailable")
}

func TestNewWithWriter_BadLevel(t *testing.T) {
	_, err := NewWithWriter(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
