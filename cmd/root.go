package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "store-bench",
	Short: "Benchmark heterogeneous data-store backends under a uniform workload",
	Long: `store-bench runs a fixed dataset workload (import, CRUD, export)
against each configured storage backend, sampling CPU and memory
concurrently with every timed operation, and merges the results into a
comparative report.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
