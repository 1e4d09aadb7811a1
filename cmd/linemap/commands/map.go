package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/linemap/pkg/index"
	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
	"github.com/Sumatoshi-tech/linemap/pkg/observability"
	"github.com/Sumatoshi-tech/linemap/pkg/report"
	"github.com/Sumatoshi-tech/linemap/pkg/resolver"
)

// Sentinel errors for map command arguments.
var (
	// ErrNoSelection indicates neither --line nor --all was given.
	ErrNoSelection = errors.New("one of --line or --all is required")
	// ErrConflictingSelection indicates both --line and --all were given.
	ErrConflictingSelection = errors.New("--line and --all are mutually exclusive")
	// ErrNoInput indicates neither an input file nor --index was given.
	ErrNoInput = errors.New("an input file or --index is required")
	// ErrConflictingInput indicates both an input file and --index were given.
	ErrConflictingInput = errors.New("an input file and --index are mutually exclusive")
)

type mapOptions struct {
	lines     []int
	all       bool
	topLevel  string
	format    string
	indexPath string
}

func (o *mapOptions) validate(args []string) error {
	switch {
	case o.all && len(o.lines) > 0:
		return ErrConflictingSelection
	case !o.all && len(o.lines) == 0:
		return ErrNoSelection
	case len(args) == 0 && o.indexPath == "":
		return ErrNoInput
	case len(args) > 0 && o.indexPath != "":
		return ErrConflictingInput
	}

	return nil
}

func newMapCommand(flags *globalFlags) *cobra.Command {
	opts := &mapOptions{}

	cmd := &cobra.Command{
		Use:   "map [file|-]",
		Short: "Map flattened lines to their inclusion stacks",
		Long: `Map 0-based flattened line numbers to the original file and line they came
from, together with every enclosing include.

Lines are read from a flattened file, from stdin with "-", or from an index
built earlier with "linemap index build".`,
		Example: `  linemap map out.i --line 0 --line 42
  cpp -P main.c | linemap map - --all --format json
  linemap map --index out.lmix --line 1200`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.validate(args)
			if err != nil {
				return err
			}

			return runMap(cmd, flags, opts, args)
		},
	}

	cmd.Flags().IntSliceVarP(&opts.lines, "line", "l", nil, "0-based flattened line to map (repeatable)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "map every line")
	cmd.Flags().StringVar(&opts.topLevel, "top", "", "file name for content before the first directive")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: text, json, yaml")
	cmd.Flags().StringVar(&opts.indexPath, "index", "", "read mappings from an index instead of a flattened file")

	return cmd
}

func runMap(cmd *cobra.Command, flags *globalFlags, opts *mapOptions, args []string) error {
	sess, err := flags.open(cmd, observability.ModeCLI, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	m, err := loadMapper(cmd, sess, opts.indexPath, args, opts.topLevel)
	if err != nil {
		return err
	}

	var atts []resolver.Attribution

	if opts.all {
		atts, err = resolver.AttributeAll(m)
	} else {
		atts, err = resolver.Attribute(m, opts.lines)
	}

	if err != nil {
		return err
	}

	return report.WriteStacks(cmd.OutOrStdout(), atts, sess.format(opts.format))
}

// loadMapper returns the mapper of an index when indexPath is set, or of the
// flattened input named by args[0] otherwise.
func loadMapper(cmd *cobra.Command, sess *session, indexPath string, args []string, topLevel string) (*linemap.Mapper, error) {
	if indexPath != "" {
		snap, err := index.Load(indexPath)
		if err != nil {
			return nil, err
		}

		m, err := snap.Mapper()
		if err != nil {
			return nil, fmt.Errorf("load index: %w", err)
		}

		return m, nil
	}

	text, err := readInput(cmd, args[0])
	if err != nil {
		return nil, err
	}

	return sess.resolver.Mapper(cmd.Context(), text, topLevel)
}
