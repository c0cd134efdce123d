package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogrusLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogrusLogger(&buf, "warn")

	l.Info("hidden", nil)
	l.Warn("funding pending", map[string]any{"tx": "abc"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "funding pending")
	assert.Contains(t, out, "tx=abc")
}

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core))

	l.Debug("poll", map[string]any{"attempt": 3})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "poll", entries[0].Message)
		assert.EqualValues(t, 3, entries[0].ContextMap()["attempt"])
	}
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopLogger{}, OrNoop(nil))

	var buf bytes.Buffer
	l := NewLogrusLogger(&buf, "info")
	assert.Same(t, l, OrNoop(l))
}
