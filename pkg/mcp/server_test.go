package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
	"github.com/Sumatoshi-tech/linemap/pkg/mcp"
	"github.com/Sumatoshi-tech/linemap/pkg/observability"
	"github.com/Sumatoshi-tech/linemap/pkg/resolver"
)

const flattened = "# 1 \"a.f90\"\nprogram a\n# 1 \"b.f90\"\n  call b()\n  call b2()\n# 3 \"a.f90\"\nend program\n"

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func newServer(t *testing.T, deps mcp.ServerDeps) *mcp.Server {
	t.Helper()

	srv, err := mcp.NewServer(deps)
	require.NoError(t, err)

	return srv
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)

	return result
}

func firstText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	srv := newServer(t, mcp.ServerDeps{})
	assert.Equal(t, []string{mcp.ToolNameMap, mcp.ToolNameRecords}, srv.ListToolNames())

	session := connect(t, srv)

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 2)

	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}
}

func TestServer_MapLines(t *testing.T) {
	t.Parallel()

	session := connect(t, newServer(t, mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameMap, map[string]any{
		"text":  flattened,
		"lines": []int{3, 6},
	})
	require.False(t, result.IsError, firstText(t, result))

	var got []resolver.Attribution

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &got))

	want := []resolver.Attribution{
		{Line: 3, Stack: linemap.Stack{{File: "a.f90", Line: 1}, {File: "b.f90", Line: 1}}},
		{Line: 6, Stack: linemap.Stack{{File: "a.f90", Line: 3}}},
	}
	assert.Equal(t, want, got)
}

func TestServer_MapAll(t *testing.T) {
	t.Parallel()

	session := connect(t, newServer(t, mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameMap, map[string]any{"text": flattened, "all": true})
	require.False(t, result.IsError)

	var got []resolver.Attribution

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &got))
	assert.Len(t, got, 7)
}

func TestServer_Records(t *testing.T) {
	t.Parallel()

	session := connect(t, newServer(t, mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameRecords, map[string]any{
		"text":           "x = 1\n# 1 \"inc.h\"\ny = 2\n",
		"top_level_file": "main.c",
	})
	require.False(t, result.IsError)

	var got mcp.RecordsResult

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &got))
	assert.Equal(t, "main.c", got.Source)
	assert.Equal(t, 3, got.TotalLines)
	require.Len(t, got.Records, 2)
	assert.Equal(t, linemap.Stack{{File: "main.c", Line: 1}}, got.Records[0].Stack)
}

func TestServer_InputErrors(t *testing.T) {
	t.Parallel()

	session := connect(t, newServer(t, mcp.ServerDeps{MaxTextBytes: 100}))

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{name: "empty text", tool: mcp.ToolNameMap, args: map[string]any{"text": "", "lines": []int{0}}, want: mcp.ErrEmptyText.Error()},
		{name: "no lines", tool: mcp.ToolNameMap, args: map[string]any{"text": flattened}, want: mcp.ErrNoLines.Error()},
		{name: "too large", tool: mcp.ToolNameRecords, args: map[string]any{"text": strings.Repeat("x\n", 64)}, want: mcp.ErrTextTooLarge.Error()},
		{name: "out of range", tool: mcp.ToolNameMap, args: map[string]any{"text": flattened, "lines": []int{42}}, want: linemap.ErrOutOfRange.Error()},
		{name: "malformed", tool: mcp.ToolNameRecords, args: map[string]any{"text": "# 99999999999999999999\n"}, want: linemap.ErrMalformedDirective.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, session, tt.tool, tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, firstText(t, result), tt.want)
		})
	}
}

func TestServer_TracingAndMetrics(t *testing.T) {
	t.Parallel()

	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	session := connect(t, newServer(t, mcp.ServerDeps{Tracer: tp.Tracer("test"), Metrics: red}))

	ok := callTool(t, session, mcp.ToolNameMap, map[string]any{"text": flattened, "lines": []int{1}})
	require.False(t, ok.IsError)

	last, isText := ok.Content[len(ok.Content)-1].(*mcpsdk.TextContent)
	require.True(t, isText)
	assert.True(t, strings.HasPrefix(last.Text, "trace_id="))

	bad := callTool(t, session, mcp.ToolNameMap, map[string]any{"text": ""})
	require.True(t, bad.IsError)

	names := make([]string, 0)
	for _, span := range spans.GetSpans() {
		names = append(names, span.Name)
	}

	assert.Contains(t, names, "mcp."+mcp.ToolNameMap)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	var errorsSeen bool

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == observability.MetricErrorsTotal {
				errorsSeen = true
			}
		}
	}

	assert.True(t, errorsSeen)
}

func TestServer_ResolverWithMatchTimeout(t *testing.T) {
	t.Parallel()

	res, err := resolver.New(resolver.Options{MatchTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	session := connect(t, newServer(t, mcp.ServerDeps{Resolver: res}))

	result := callTool(t, session, mcp.ToolNameRecords, map[string]any{"text": flattened})
	require.False(t, result.IsError, firstText(t, result))

	var got mcp.RecordsResult

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &got))
	assert.Len(t, got.Records, 3)
	assert.Equal(t, 7, got.TotalLines)
}
