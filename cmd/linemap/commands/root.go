// Package commands implements the linemap CLI commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/linemap/pkg/version"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	quiet      bool
}

// NewRootCommand builds the linemap command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "linemap",
		Short: "Map flattened source lines back to their original files",
		Long: `linemap reads text produced by a preprocessor that flattens nested includes
and annotates the result with line-marker directives such as

  # 12 "lib/util.h"

and answers, for any flattened line, which original file and line it came
from together with the whole chain of enclosing includes.

Commands:
  map       Map flattened lines to their inclusion stacks
  records   List the directive records of a flattened file
  index     Build and inspect persisted mapping indexes
  plot      Render the include depth as an HTML chart
  mcp       Serve the mapper to AI agents over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default .linemap.yaml in . or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(newMapCommand(flags))
	rootCmd.AddCommand(newRecordsCommand(flags))
	rootCmd.AddCommand(newIndexCommand(flags))
	rootCmd.AddCommand(newPlotCommand(flags))
	rootCmd.AddCommand(newMCPCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "linemap %s\n", version.String())
		},
	}
}
