package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/linemap/pkg/observability"
	"github.com/Sumatoshi-tech/linemap/pkg/report"
)

func newRecordsCommand(flags *globalFlags) *cobra.Command {
	var topLevel, format string

	cmd := &cobra.Command{
		Use:   "records <file|->",
		Short: "List the directive records of a flattened file",
		Long: `List one record per directive line, plus the synthesized record for content
before the first directive. Each record shows how many flattened lines it
governs, its include depth and the file and declared line it starts at.`,
		Args: cobra.ExactArgs(1),
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

			return report.WriteRecords(cmd.OutOrStdout(), m.Records(), m.Lines(), sess.format(format))
		},
	}

	cmd.Flags().StringVar(&topLevel, "top", "", "file name for content before the first directive")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: text, json, yaml")

	return cmd
}
