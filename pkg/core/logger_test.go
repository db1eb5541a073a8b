package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core)).With("component", "retrieval")

	logger.Warn("full-text index unavailable", "error", "no such module")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "full-text index unavailable", entries[0].Message)
	assert.Equal(t, "retrieval", entries[0].ContextMap()["component"])
	assert.Equal(t, "no such module", entries[0].ContextMap()["error"])

	assert.Equal(t, NopLogger(), NewZapLogger(nil))
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	assert.NotPanics(t, func() {
		logger.With("k", "v").Error("dropped", "op", "add_memory")
	})
	assert.Equal(t, logger, logger.With("k", "v"))
}
