// Package main provides the treestore CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/version"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	noColor    bool
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "treestore",
		Short: "Hierarchical record store with search, paging and selection",
		Long: `treestore keeps a forest of nested records addressable by stable internal
ids and natural keys. It filters, pages, selects and restructures the forest
from the command line, over HTTP, or as an MCP server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is ./treestore.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(queryCmd(flags))
	rootCmd.AddCommand(showCmd(flags))
	rootCmd.AddCommand(exportCmd(flags))
	rootCmd.AddCommand(validateCmd(flags))
	rootCmd.AddCommand(diffCmd(flags))
	rootCmd.AddCommand(exploreCmd(flags))
	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(mcpCmd(flags))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cobraCmd *cobra.Command, _ []string) {
			fmt.Fprintln(cobraCmd.OutOrStdout(), version.String())
		},
	}
}
