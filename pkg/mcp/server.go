// Package mcp implements a Model Context Protocol server that exposes line
// attribution as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/linemap/pkg/observability"
	"github.com/Sumatoshi-tech/linemap/pkg/resolver"
	"github.com/Sumatoshi-tech/linemap/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "linemap"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Resolver answers tool calls. Nil builds one with default options.
	Resolver *resolver.Resolver

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// MaxTextBytes caps the text argument. Zero means MaxTextInputBytes.
	MaxTextBytes int
}

// Server wraps the MCP SDK server with linemap tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	tools   *toolset
	mu      sync.RWMutex
	names   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates a new MCP server with all linemap tools registered.
func NewServer(deps ServerDeps) (*Server, error) {
	res := deps.Resolver
	if res == nil {
		var err error

		res, err = resolver.New(resolver.Options{Logger: deps.Logger})
		if err != nil {
			return nil, fmt.Errorf("mcp server: %w", err)
		}
	}

	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	maxBytes := deps.MaxTextBytes
	if maxBytes <= 0 {
		maxBytes = MaxTextInputBytes
	}

	srv := &Server{
		inner:   inner,
		tools:   &toolset{resolver: res, maxBytes: maxBytes},
		names:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	srv.registerTools()

	return srv, nil
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.names))
	copy(names, s.names)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameMap,
		Description: mapToolDescription,
	}, withMetrics(s.metrics, ToolNameMap, withTracing(s.tracer, ToolNameMap, s.tools.handleMap)))

	s.trackTool(ToolNameMap)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameRecords,
		Description: recordsToolDescription,
	}, withMetrics(s.metrics, ToolNameRecords, withTracing(s.tracer, ToolNameRecords, s.tools.handleRecords)))

	s.trackTool(ToolNameRecords)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps a tool handler in a span per invocation and appends the
// trace_id to the response when the span is sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if result != nil && result.IsError {
			span.SetAttributes(attribute.Bool("mcp.tool_error", true))
		}

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps a tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	op := mcpSpanPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, op)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.names = append(s.names, name)
}

// Tool description constants.
const (
	mapToolDescription = "Map lines of preprocessed (flattened) source text back to the " +
		"original files. Accepts the flattened text with line-marker directives " +
		"and 0-based line numbers; returns the include chain for each line, outermost first."

	recordsToolDescription = "List the line-marker directive records of preprocessed source text: " +
		"where each include starts and the include chain active from there."
)
