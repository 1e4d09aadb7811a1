package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// IndexSummary describes a persisted index.
type IndexSummary struct {
	Source     string   `json:"source"      yaml:"source"`
	Pattern    string   `json:"pattern"     yaml:"pattern"`
	Files      []string `json:"files"       yaml:"files"`
	Version    int      `json:"version"     yaml:"version"`
	TotalLines int      `json:"total_lines" yaml:"total_lines"`
	Records    int      `json:"records"     yaml:"records"`
	MaxDepth   int      `json:"max_depth"   yaml:"max_depth"`
	SizeBytes  int64    `json:"size_bytes"  yaml:"size_bytes"`
	Compressed bool     `json:"compressed"  yaml:"compressed"`
}

// WriteSummary renders s as a two column table for text, or encodes it.
func WriteSummary(w io.Writer, s IndexSummary, format string) error {
	if format != FormatText && format != "" {
		return encode(w, s, format)
	}

	pattern := s.Pattern
	if pattern == "" {
		pattern = "(default)"
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendRows([]table.Row{
		{"Source", s.Source},
		{"Version", s.Version},
		{"Lines", humanize.Comma(int64(s.TotalLines))},
		{"Records", humanize.Comma(int64(s.Records))},
		{"Max depth", s.MaxDepth},
		{"Files", strings.Join(s.Files, ", ")},
		{"Pattern", pattern},
		{"Compressed", s.Compressed},
		{"Size", humanize.Bytes(uint64(max(s.SizeBytes, 0)))},
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}
