// Package commands implements the hark command line interface.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	metricsAddr string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hark",
		Short: "Hark - Task Execution Engine",
		Long: `Hark executes task plans produced by a voice assistant planner.

A plan is an ordered list of action steps, optionally partitioned into
parallel groups. The engine retries recoverable failures with exponential
backoff, gates sensitive actions behind explicit confirmation, and unwinds
completed steps in reverse order when a plan fails partway through.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-listen", "", "enable the Prometheus endpoint on this address")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newPreviewCommand())
	rootCmd.AddCommand(newActionsCommand())
	rootCmd.AddCommand(newPoliciesCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
