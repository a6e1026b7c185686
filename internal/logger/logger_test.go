package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel maps level names, case-insensitively, and rejects unknown ones.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got, s)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextLogger checks that named and keyed loggers travel through the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf, zapcore.DebugLevel))
	ctx = WithName(ctx, "registry")
	ctx = WithKV(ctx, "alarm_id", "a-1")

	InfoKV(ctx, "Alarm merged", "source", "push")

	out := buf.String()
	require.Contains(t, out, "registry")
	require.Contains(t, out, "Alarm merged")
	require.Contains(t, out, "a-1")
	require.Contains(t, out, "push")
}

// TestFromContextFallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, global, FromContext(context.Background()))
}

// TestFields scopes several pairs at once and filters by level.
func TestFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf, zapcore.WarnLevel))
	ctx = WithFields(ctx, "alarm_id", "a-7", "action", "notify")

	InfoKV(ctx, "Hidden")
	WarnKV(ctx, "Stop alert failed")

	out := buf.String()
	require.NotContains(t, out, "Hidden")
	require.Contains(t, out, "Stop alert failed")
	require.Contains(t, out, "a-7")
	require.Contains(t, out, "notify")
}
