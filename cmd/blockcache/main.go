// Package main provides the entry point for the blockcache CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockcache/cmd/blockcache/commands"
)

const appName = "blockcache"

func main() {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "blockcache - composable multi-tier key/value cache framework",
		Long: `blockcache builds and exercises cache topologies assembled from
pkg/blockcache engines and combinators.

Commands:
  build   Build a cache topology from a declarative config file
  bench   Run a synthetic benchmark against a topology and render a report`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewBenchCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	const version = "0.1.0"

	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "%s %s\n", appName, version)
		},
	}
}
