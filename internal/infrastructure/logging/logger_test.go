package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLoggerAddsServiceMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{
		Level:       "info",
		Format:      "json",
		Output:      &buf,
		ServiceName: "clinic-queue",
		Environment: "test",
	})

	logger.Info("ticket issued", "display_code", "N001")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ticket issued", entry["msg"])
	assert.Equal(t, "clinic-queue", entry["service"])
	assert.Equal(t, "test", entry["environment"])
	assert.Equal(t, "N001", entry["display_code"])
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestContextValuesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithClientID(ctx, "display-7")
	logger.InfoContext(ctx, "state pushed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "display-7", entry["client_id"])
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	assert.Same(t, base, LoggerFromContext(context.Background(), base))

	ctx := WithRequestID(context.Background(), "req-2")
	LoggerFromContext(ctx, base).Info("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-2", entry["request_id"])
}

func TestLogPanicIncludesAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogPanic(logger, errors.New("kaboom"), "path", "/tickets")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "panic recovered", entry["msg"])
	assert.Equal(t, "kaboom", entry["panic"])
	assert.Equal(t, "/tickets", entry["path"])
	assert.NotEmpty(t, entry["stack_trace"])
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "pretty", Output: &buf, ServiceName: "display"})

	logger.Info("announcement played", "version", 3)

	out := buf.String()
	assert.Contains(t, out, "announcement played")
	assert.Contains(t, out, "version=3")
	assert.Contains(t, out, "service=display")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
