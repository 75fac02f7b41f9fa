package cmd

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tclemos/store-bench/benchmark"
)

var (
	configPath     string
	backendNames   []string
	resultsDir     string
	logFormat      string
	sampleInterval time.Duration
	updateLimit    int
	batchSize      int
	noReport       bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark against the configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := benchmark.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := cfg.FilterBackends(backendNames); err != nil {
			return err
		}

		if cmd.Flags().Changed("results-dir") {
			cfg.ResultsDir = resultsDir
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if cmd.Flags().Changed("sample-interval") {
			cfg.SampleInterval = sampleInterval
		}
		if cmd.Flags().Changed("update-limit") {
			cfg.UpdateLimit = updateLimit
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.InsertBatchSize = batchSize
		}
		cfg.NoReport = noReport

		results, err := benchmark.RunAll(cfg)
		if err != nil {
			return err
		}

		failed := 0
		for name, r := range results {
			if !r.OK() {
				failed++
				log.Warn().Str("backend", name).Str("error", r.Err).Msg("Backend produced no metrics")
			}
		}
		log.Info().
			Int("backends", len(results)).
			Int("failed", failed).
			Msg("Benchmark complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (default: store-bench.yaml)")
	runCmd.Flags().StringSliceVar(&backendNames, "backend", nil, "Backend(s) to benchmark (default: all configured)")
	runCmd.Flags().StringVar(&resultsDir, "results-dir", "results", "Directory for metrics, exports and reports")
	runCmd.Flags().StringVar(&logFormat, "log-format", "console", "Log format: 'json' or 'console'")
	runCmd.Flags().DurationVar(&sampleInterval, "sample-interval", 500*time.Millisecond, "Resource sampling interval")
	runCmd.Flags().IntVar(&updateLimit, "update-limit", 10000, "Maximum documents flagged by the update step")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 10000, "Insert batch size")
	runCmd.Flags().BoolVar(&noReport, "no-report", false, "Skip comparative report generation")
}
