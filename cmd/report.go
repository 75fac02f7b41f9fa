package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tclemos/store-bench/benchmark"
)

var (
	reportConfigPath string
	reportResultsDir string
	reportStdout     bool
)

// reportCmd rebuilds the comparative report from previously persisted
// per-backend metric files, without re-running any benchmark.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Rebuild the comparative report from persisted metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := benchmark.LoadConfig(reportConfigPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("results-dir") {
			cfg.ResultsDir = reportResultsDir
		}

		store := benchmark.NewMetricsStore(cfg.ResultsDir)
		results := make(map[string]benchmark.BackendResult, len(cfg.Backends))
		for _, b := range cfg.Backends {
			run, err := store.LoadRun(b.Name)
			if err != nil {
				log.Warn().Err(err).Str("backend", b.Name).Msg("No persisted metrics")
				results[b.Name] = benchmark.BackendResult{Err: err.Error()}
				continue
			}
			results[b.Name] = benchmark.BackendResult{Run: run}
		}

		report := benchmark.BuildComparative(results)
		if reportStdout {
			return report.WriteCSV(os.Stdout)
		}

		path, err := store.SaveComparative(report)
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Comparative report saved")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportConfigPath, "config", "c", "", "Path to the YAML config file (default: store-bench.yaml)")
	reportCmd.Flags().StringVar(&reportResultsDir, "results-dir", "results", "Directory holding persisted metrics")
	reportCmd.Flags().BoolVar(&reportStdout, "stdout", false, "Write the report to stdout instead of a file")
}
