package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/linemap/pkg/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", observability.ModeCLI))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "mapped")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, "cli", record["mode"])
}

func TestTracingHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "linemap", observability.ModeMCP))

	logger.InfoContext(context.Background(), "no span")

	record := decodeRecord(t, &buf)

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)
	assert.Equal(t, "linemap", record["service"])
	assert.Equal(t, "mcp", record["mode"])
}

func TestTracingHandler_WithGroupKeepsServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "linemap", observability.ModeCLI))

	logger.WithGroup("scan").InfoContext(context.Background(), "done", slog.Int("records", 3))

	record := decodeRecord(t, &buf)
	assert.Equal(t, "linemap", record["service"])

	scan, ok := record["scan"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3, scan["records"], 0)
}

func TestTracingHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "linemap", ""))

	logger.With(slog.String("op", "map")).InfoContext(context.Background(), "started")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "map", record["op"])
	assert.Equal(t, "linemap", record["service"])

	_, hasMode := record["mode"]
	assert.False(t, hasMode)
}

func TestTracingHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(observability.NewTracingHandler(inner, "linemap", observability.ModeCLI))

	logger.DebugContext(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}
