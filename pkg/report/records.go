package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
)

// unknownLanguage fills the language column when enry cannot tell.
const unknownLanguage = "-"

// RecordRow is one record with its derived columns.
type RecordRow struct {
	Line     int    `json:"line"     yaml:"line"`
	Span     int    `json:"span"     yaml:"span"`
	Depth    int    `json:"depth"    yaml:"depth"`
	File     string `json:"file"     yaml:"file"`
	Declared int    `json:"declared" yaml:"declared"`
	Language string `json:"language" yaml:"language"`

	Stack linemap.Stack `json:"stack" yaml:"stack"`
}

// Rows derives table rows from records. Span is the number of flattened
// lines a record governs.
func Rows(records []linemap.Record, totalLines int) []RecordRow {
	rows := make([]RecordRow, len(records))

	for i, rec := range records {
		end := totalLines
		if i+1 < len(records) {
			end = records[i+1].Line
		}

		last := rec.Stack.Last()

		rows[i] = RecordRow{
			Line:     rec.Line,
			Span:     end - rec.Line,
			Depth:    rec.Stack.Depth(),
			File:     last.File,
			Declared: last.Line,
			Language: language(last.File),
			Stack:    rec.Stack,
		}
	}

	return rows
}

func language(file string) string {
	lang := enry.GetLanguage(filepath.Base(file), nil)
	if lang == "" {
		return unknownLanguage
	}

	return lang
}

// WriteRecordsTable renders records as a table followed by a summary footer.
func WriteRecordsTable(w io.Writer, records []linemap.Record, totalLines int) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"Line", "Span", "Depth", "File", "Declared", "Language"})

	maxDepth := 0
	files := make(map[string]struct{})

	for _, row := range Rows(records, totalLines) {
		tbl.AppendRow(table.Row{row.Line, row.Span, row.Depth, row.File, row.Declared, row.Language})

		maxDepth = max(maxDepth, row.Depth)
		files[row.File] = struct{}{}
	}

	tbl.AppendFooter(table.Row{
		humanize.Comma(int64(len(records))) + " records",
		humanize.Comma(int64(totalLines)) + " lines",
		fmt.Sprintf("max %d", maxDepth),
		fmt.Sprintf("%d files", len(files)),
		"",
		"",
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return nil
}

// WriteRecords renders records as a table for text, or encodes their rows.
func WriteRecords(w io.Writer, records []linemap.Record, totalLines int, format string) error {
	if format == FormatText || format == "" {
		return WriteRecordsTable(w, records, totalLines)
	}

	return encode(w, Rows(records, totalLines), format)
}
