package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))

	l, err := New("debug")
	require.NoError(t, err)
	assert.Same(t, l, OrNop(l))
}

func TestWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{Logger: zap.New(core)}

	l.WithRequest("corr-1", "").Info("a")
	l.WithRequest("corr-2", "req-2").Info("b")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{"correlation_id": "corr-1"}, entries[0].ContextMap())
	assert.Equal(t, map[string]any{"correlation_id": "corr-2", "request_id": "req-2"}, entries[1].ContextMap())
}
