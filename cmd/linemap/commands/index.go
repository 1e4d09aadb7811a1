package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/linemap/pkg/index"
	"github.com/Sumatoshi-tech/linemap/pkg/observability"
	"github.com/Sumatoshi-tech/linemap/pkg/report"
)

func newIndexCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and inspect persisted mapping indexes",
		Long: `An index stores the directive records of a flattened file so later queries
can map lines without rescanning the text. Indexes are JSON documents,
LZ4-compressed by default.`,
	}

	cmd.AddCommand(newIndexBuildCommand(flags))
	cmd.AddCommand(newIndexInspectCommand(flags))

	return cmd
}

func newIndexBuildCommand(flags *globalFlags) *cobra.Command {
	var (
		topLevel   string
		output     string
		noCompress bool
	)

	cmd := &cobra.Command{
		Use:     "build <file|->",
		Short:   "Scan a flattened file and save its index",
		Example: `  linemap index build out.i -o out.lmix`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := flags.open(cmd, observability.ModeCLI, nil)
			if err != nil {
				return err
			}
			defer sess.close()

			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			m, err := sess.resolver.Mapper(cmd.Context(), text, topLevel)
			if err != nil {
				return err
			}

			snap := index.FromMapper(m, sess.resolver.Pattern())
			compress := sess.cfg.Index.Compress && !noCompress

			err = index.Save(output, snap, compress)
			if err != nil {
				return err
			}

			info, err := os.Stat(output)
			if err != nil {
				return fmt.Errorf("stat index: %w", err)
			}

			sess.providers.Logger.Debug("index saved", "path", output, "compressed", compress)

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s records, %s lines, %s\n",
				output,
				humanize.Comma(int64(len(snap.Records))),
				humanize.Comma(int64(snap.TotalLines)),
				humanize.Bytes(uint64(info.Size())),
			)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "index file to write")
	cmd.Flags().StringVar(&topLevel, "top", "", "file name for content before the first directive")
	cmd.Flags().BoolVar(&noCompress, "no-compress", false, "write plain JSON instead of LZ4")

	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newIndexInspectCommand(flags *globalFlags) *cobra.Command {
	var (
		format  string
		records bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <index>",
		Short: "Validate an index and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := flags.open(cmd, observability.ModeCLI, nil)
			if err != nil {
				return err
			}
			defer sess.close()

			snap, err := index.Load(args[0])
			if err != nil {
				return err
			}

			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("stat index: %w", err)
			}

			summary := report.IndexSummary{
				Source:     snap.Source,
				Pattern:    snap.Pattern,
				Files:      snap.Files(),
				Version:    snap.Version,
				TotalLines: snap.TotalLines,
				Records:    len(snap.Records),
				MaxDepth:   snap.MaxDepth(),
				SizeBytes:  info.Size(),
				Compressed: snap.Compressed,
			}

			out := cmd.OutOrStdout()

			err = report.WriteSummary(out, summary, sess.format(format))
			if err != nil || !records {
				return err
			}

			m, err := snap.Mapper()
			if err != nil {
				return fmt.Errorf("load index: %w", err)
			}

			return report.WriteRecords(out, m.Records(), m.Lines(), sess.format(format))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: text, json, yaml")
	cmd.Flags().BoolVar(&records, "records", false, "also list the stored records")

	return cmd
}
