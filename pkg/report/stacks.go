// Package report renders attributions and directive records for people and
// for machines: coloured text, JSON, YAML, tables and an HTML depth chart.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
	"github.com/Sumatoshi-tech/linemap/pkg/resolver"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for a format other than text, json or yaml.
var ErrUnknownFormat = errors.New("unknown output format")

const includedFrom = "  included from "

var (
	lineColor  = color.New(color.FgYellow)
	frameColor = color.New(color.FgCyan, color.Bold)
	trailColor = color.New(color.Faint)
)

// WriteStacks renders attributions in format. Text output shows the active
// frame first and then one "included from" line per enclosing file.
func WriteStacks(w io.Writer, atts []resolver.Attribution, format string) error {
	switch format {
	case FormatText, "":
		return writeStacksText(w, atts)
	default:
		return encode(w, atts, format)
	}
}

func writeStacksText(w io.Writer, atts []resolver.Attribution) error {
	for _, att := range atts {
		_, err := fmt.Fprintf(w, "%s %s\n", lineColor.Sprintf("%d:", att.Line), frameColor.Sprint(att.Stack.Last()))
		if err != nil {
			return fmt.Errorf("write stack: %w", err)
		}

		err = writeTrail(w, att.Stack)
		if err != nil {
			return err
		}
	}

	return nil
}

func writeTrail(w io.Writer, stack linemap.Stack) error {
	for i := len(stack) - 2; i >= 0; i-- {
		_, err := fmt.Fprintln(w, trailColor.Sprint(includedFrom+stack[i].String()))
		if err != nil {
			return fmt.Errorf("write stack: %w", err)
		}
	}

	return nil
}

// encode writes value as indented JSON or YAML.
func encode(w io.Writer, value any, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(value)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(value)
		if err != nil {
			return errors.Join(fmt.Errorf("encode yaml: %w", err), enc.Close())
		}

		err = enc.Close()
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
