package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// restoreGlobalLevel undoes the SetGlobalLevel side effect of newLogger.
func restoreGlobalLevel(t *testing.T) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func decodeEntry(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(b, &entry))
	return entry
}

// ── construction ─────────────────────────────────────────────────────────────

func TestNewLogger_NotNil(t *testing.T) {
	restoreGlobalLevel(t)
	require.NotNil(t, NewLogger("miniservice", "info", false))
}

func TestNewLogger_Fields(t *testing.T) {
	restoreGlobalLevel(t)
	var buf bytes.Buffer
	l := newLogger(&buf, "orders", "info", false)

	l.Info().Msg("hello")

	entry := decodeEntry(t, buf.Bytes())
	assert.Equal(t, "orders", entry["role"])
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "ts")
	assert.NotContains(t, entry, "time")
	assert.Contains(t, entry, "func")
	assert.Equal(t, "func", zerolog.CallerFieldName)
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{name: "debug", level: "debug", wantLevel: zerolog.DebugLevel},
		{name: "warn", level: "warn", wantLevel: zerolog.WarnLevel},
		{name: "empty falls back to info", level: "", wantLevel: zerolog.InfoLevel},
		{name: "invalid falls back to info", level: "verbose", wantLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobalLevel(t)
			var buf bytes.Buffer
			l := newLogger(&buf, "lvl", tt.level, false)

			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())

			l.Debug().Msg("debug line")
			assert.Equal(t, tt.wantLevel <= zerolog.DebugLevel, strings.Contains(buf.String(), "debug line"))
		})
	}
}

func TestNewLogger_PrettyUsesConsoleWriter(t *testing.T) {
	restoreGlobalLevel(t)
	var buf bytes.Buffer
	l := newLogger(&buf, "dev", "info", true)

	l.Info().Str("step", "router").Msg("pretty line")

	out := buf.String()
	assert.Contains(t, out, "pretty line")
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "role=dev")
	assert.Contains(t, out, "step=router")

	var entry map[string]any
	assert.Error(t, json.Unmarshal(buf.Bytes(), &entry), "console output is not JSON")
}

// ── nop ──────────────────────────────────────────────────────────────────────

func TestNop_DiscardsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Nop()
	require.NotNil(t, l)
	l.Logger = l.Output(&buf)

	l.Info().Msg("should be discarded")

	assert.Empty(t, buf.String())
}

// ── derived loggers ──────────────────────────────────────────────────────────

func TestGetChildLogger_InheritsFields(t *testing.T) {
	var buf bytes.Buffer
	parent := &Logger{zerolog.New(&buf).With().Str("role", "inherited").Logger()}

	child := parent.GetChildLogger()
	require.NotNil(t, child)
	assert.NotSame(t, parent, child)

	child.Info().Msg("child message")

	assert.Equal(t, "inherited", decodeEntry(t, buf.Bytes())["role"])
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	parent := &Logger{zerolog.New(&buf).With().Str("role", "orders").Logger()}

	parent.WithComponent("eventbus").Info().Msg("published")

	entry := decodeEntry(t, buf.Bytes())
	assert.Equal(t, "eventbus", entry["component"])
	assert.Equal(t, "orders", entry["role"])

	buf.Reset()
	parent.Info().Msg("parent untouched")
	assert.NotContains(t, decodeEntry(t, buf.Bytes()), "component")
}

// ── context ──────────────────────────────────────────────────────────────────

func TestFromContext(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))

	var buf bytes.Buffer
	zl := zerolog.New(&buf).With().Str("ctx-key", "ctx-value").Logger()

	FromContext(zl.WithContext(context.Background())).Info().Msg("from context")

	assert.Equal(t, "ctx-value", decodeEntry(t, buf.Bytes())["ctx-key"])
}

func TestFromRequest(t *testing.T) {
	require.NotNil(t, FromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))

	var buf bytes.Buffer
	zl := zerolog.New(&buf).With().Str("req-key", "req-value").Logger()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(zl.WithContext(req.Context()))

	FromRequest(req).Info().Msg("from request")

	assert.Equal(t, "req-value", decodeEntry(t, buf.Bytes())["req-key"])
}
