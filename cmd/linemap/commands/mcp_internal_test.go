package commands

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

func TestServeMetrics_ServesAndStops(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "linemap_requests_total 1\n")
	})

	stop, bound, err := serveMetrics("127.0.0.1:0", handler, nooptrace.NewTracerProvider().Tracer("test"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	resp, err := http.Get("http://" + bound + metricsPath)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "linemap_requests_total")

	missing, err := http.Get("http://" + bound + "/other")
	require.NoError(t, err)
	require.NoError(t, missing.Body.Close())
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	stop()

	_, err = http.Get("http://" + bound + metricsPath)
	assert.Error(t, err)
}

func TestServeMetrics_BadAddress(t *testing.T) {
	t.Parallel()

	_, _, err := serveMetrics("256.0.0.1:bad", http.NotFoundHandler(), nooptrace.NewTracerProvider().Tracer("test"), slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen metrics")
}
