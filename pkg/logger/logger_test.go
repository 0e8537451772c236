package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withObservedLogger(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := log
	log = zap.New(core)
	t.Cleanup(func() { log = prev })
	return logs
}

func TestContextHelpers_CarryCorrelationID(t *testing.T) {
	logs := withObservedLogger(t)
	ctx := ContextWithCorrelationID(context.Background(), "abc-123")

	DebugContext(ctx, "debug line")
	InfoContext(ctx, "info line")
	WarnContext(ctx, "warn line")
	ErrorContext(ctx, "error line")

	entries := logs.All()
	require.Len(t, entries, 4)

	wantLevels := []zapcore.Level{
		zapcore.DebugLevel,
		zapcore.InfoLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
	}
	for i, entry := range entries {
		assert.Equal(t, wantLevels[i], entry.Level)
		assert.Equal(t, "abc-123", entry.ContextMap()["correlation_id"])
	}
}

func TestContextHelpers_NoCorrelationID(t *testing.T) {
	logs := withObservedLogger(t)

	DebugContext(context.Background(), "bare debug")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "correlation_id")
}

func TestCorrelationIDFromContext_NilContext(t *testing.T) {
	assert.Equal(t, "", CorrelationIDFromContext(nil))
}
