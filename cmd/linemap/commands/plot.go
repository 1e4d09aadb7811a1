package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/linemap/pkg/observability"
	"github.com/Sumatoshi-tech/linemap/pkg/report"
)

func newPlotCommand(flags *globalFlags) *cobra.Command {
	var topLevel, output string

	cmd := &cobra.Command{
		Use:   "plot <file|->",
		Short: "Render the include depth as an HTML chart",
		Args:  cobra.ExactArgs(1),
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

			err = writeChart(output, func(f *os.File) error { return report.WriteDepthChart(f, m) })
			if err != nil {
				return err
			}

			sess.providers.Logger.Info("chart written", "path", output, "lines", m.Lines())

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "HTML file to write")
	cmd.Flags().StringVar(&topLevel, "top", "", "file name for content before the first directive")

	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func writeChart(path string, render func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}

	defer func() {
		closeErr := f.Close()
		if closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close chart: %w", closeErr))
		}
	}()

	return render(f)
}
