package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
	"github.com/Sumatoshi-tech/linemap/pkg/resolver"
)

// Tool name constants.
const (
	ToolNameMap     = "linemap_map"
	ToolNameRecords = "linemap_records"
)

// MaxTextInputBytes is the default maximum size of the text argument (16 MB).
const MaxTextInputBytes = 16 << 20

// Sentinel errors for tool input validation.
var (
	// ErrEmptyText indicates the text parameter is empty.
	ErrEmptyText = errors.New("text parameter is required and must not be empty")
	// ErrTextTooLarge indicates the text input exceeds the size limit.
	ErrTextTooLarge = errors.New("text input exceeds maximum size")
	// ErrNoLines indicates neither lines nor all was given.
	ErrNoLines = errors.New("lines must be non-empty unless all is set")
)

// MapInput is the input schema for the linemap_map tool.
type MapInput struct {
	All          bool   `json:"all,omitempty"            jsonschema:"map every line of the text"`
	Lines        []int  `json:"lines,omitempty"          jsonschema:"0-based flattened line numbers to map"`
	Text         string `json:"text"                     jsonschema:"flattened source text with line-marker directives"`
	TopLevelFile string `json:"top_level_file,omitempty" jsonschema:"file name for content before the first directive"`
}

// RecordsInput is the input schema for the linemap_records tool.
type RecordsInput struct {
	Text         string `json:"text"                     jsonschema:"flattened source text with line-marker directives"`
	TopLevelFile string `json:"top_level_file,omitempty" jsonschema:"file name for content before the first directive"`
}

// RecordsResult is the payload of the linemap_records tool.
type RecordsResult struct {
	Source     string           `json:"source"`
	TotalLines int              `json:"total_lines"`
	Records    []linemap.Record `json:"records"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// toolset binds the tool handlers to a resolver.
type toolset struct {
	resolver *resolver.Resolver
	maxBytes int
}

func (ts *toolset) handleMap(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input MapInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := ts.validateText(input.Text)
	if err != nil {
		return errorResult(err)
	}

	if !input.All && len(input.Lines) == 0 {
		return errorResult(ErrNoLines)
	}

	var atts []resolver.Attribution

	if input.All {
		atts, err = ts.resolver.MapAll(ctx, input.Text, input.TopLevelFile)
	} else {
		atts, err = ts.resolver.MapLines(ctx, input.Text, input.TopLevelFile, input.Lines)
	}

	if err != nil {
		return errorResult(err)
	}

	return jsonResult(atts)
}

func (ts *toolset) handleRecords(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RecordsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := ts.validateText(input.Text)
	if err != nil {
		return errorResult(err)
	}

	m, err := ts.resolver.Mapper(ctx, input.Text, input.TopLevelFile)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(RecordsResult{
		Source:     m.Source(),
		TotalLines: m.Lines(),
		Records:    m.Records(),
	})
}

func (ts *toolset) validateText(text string) error {
	if text == "" {
		return ErrEmptyText
	}

	if len(text) > ts.maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTextTooLarge, len(text), ts.maxBytes)
	}

	return nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
