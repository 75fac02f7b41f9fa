package benchmark

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunAll drives every configured backend through the full benchmark
// lifecycle, one at a time. Each backend's traversal is independent: a
// failure is recorded as an error result for that backend only. The
// combined results file is always written; the comparative report
// unless disabled.
func RunAll(cfg *Config) (map[string]BackendResult, error) {
	setupLog(cfg)

	if len(cfg.Backends) == 0 {
		return nil, fmt.Errorf("no backends configured")
	}

	store := NewMetricsStore(cfg.ResultsDir)
	results := make(map[string]BackendResult, len(cfg.Backends))

	for _, bc := range cfg.Backends {
		log.Info().
			Str("backend", bc.Name).
			Str("type", bc.Type).
			Msg("Starting backend benchmark")

		run, err := runBackend(cfg, bc, store)
		if err != nil {
			log.Error().Err(err).Str("backend", bc.Name).Msg("Backend benchmark failed")
			results[bc.Name] = BackendResult{Err: err.Error()}
			continue
		}
		results[bc.Name] = BackendResult{Run: run}
	}

	if err := store.SaveCombined(results); err != nil {
		log.Error().Err(err).Msg("Failed to save combined results")
	}

	if !cfg.NoReport {
		path, err := store.SaveComparative(BuildComparative(results))
		if err != nil {
			log.Error().Err(err).Msg("Failed to write comparative report")
		} else {
			log.Info().Str("path", path).Msg("Comparative report saved")
		}
	}

	return results, nil
}

// runBackend builds the adapter and stats provider for one backend and
// runs its lifecycle. A panic anywhere inside is converted into an
// error result so the remaining backends still run.
func runBackend(cfg *Config, bc BackendConfig, store *MetricsStore) (run *BenchmarkRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			run = nil
			err = fmt.Errorf("backend panicked: %v", r)
		}
	}()

	adapter, err := NewAdapter(bc, cfg.AdapterOptions())
	if err != nil {
		return nil, err
	}

	provider, target, cleanup, err := newStatsProvider(bc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	o := NewOrchestrator(bc, adapter, provider, target, cfg, store)
	return o.Run(context.Background())
}

// newStatsProvider picks the sampling source for a backend: docker
// stats for containerized engines, the benchmark process itself for
// embedded ones.
func newStatsProvider(bc BackendConfig) (StatsProvider, string, func(), error) {
	if bc.Container == "" {
		return ProcessStatsProvider{}, TargetSelf, func() {}, nil
	}

	provider, err := NewDockerStatsProvider()
	if err != nil {
		return nil, "", nil, err
	}
	cleanup := func() {
		if cerr := provider.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("Failed to close docker stats provider")
		}
	}
	return provider, bc.Container, cleanup, nil
}

// Orchestrator drives one backend through its benchmark lifecycle:
// connect, per-dataset import/CRUD/export, persist, close.
type Orchestrator struct {
	backend  BackendConfig
	adapter  Adapter
	provider StatsProvider
	target   string
	datasets []DatasetConfig
	interval time.Duration
	store    *MetricsStore

	run *BenchmarkRun
}

func NewOrchestrator(bc BackendConfig, adapter Adapter, provider StatsProvider, target string, cfg *Config, store *MetricsStore) *Orchestrator {
	return &Orchestrator{
		backend:  bc,
		adapter:  adapter,
		provider: provider,
		target:   target,
		datasets: cfg.Datasets,
		interval: cfg.SampleInterval,
		store:    store,
	}
}

// Run executes the full lifecycle. The adapter is closed exactly once
// on every path, including a failed connect; a close failure is logged
// and never masks the run's outcome.
func (o *Orchestrator) Run(ctx context.Context) (*BenchmarkRun, error) {
	o.run = NewBenchmarkRun()

	defer func() {
		if err := o.adapter.Close(); err != nil {
			log.Error().Err(err).Str("backend", o.backend.Name).Msg("Failed to close backend")
		}
	}()

	// Connection setup is excluded from measurement.
	if err := o.adapter.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	for _, ds := range o.datasets {
		if _, err := os.Stat(ds.Path); err != nil {
			log.Warn().
				Str("dataset", ds.Label).
				Str("path", ds.Path).
				Msg("Dataset file not found, skipping")
			continue
		}

		log.Info().
			Str("backend", o.backend.Name).
			Str("dataset", ds.Label).
			Msg("Benchmarking dataset")

		o.measure(ctx, "Import "+ds.Label, func(ctx context.Context) error {
			count, err := o.adapter.InsertData(ctx, ds.Path, ds.Collection)
			if err != nil {
				return err
			}
			log.Info().Int("count", count).Str("collection", ds.Collection).Msg("Documents inserted")
			return nil
		})

		// Read, update and delete run back to back inside one
		// measurement so their combined footprint lands on one label.
		o.measure(ctx, "CRUD "+ds.Label, func(ctx context.Context) error {
			if err := o.adapter.ReadData(ctx, ds.Collection); err != nil {
				return err
			}
			updated, err := o.adapter.UpdateData(ctx, ds.Collection)
			if err != nil {
				return err
			}
			deleted, err := o.adapter.DeleteData(ctx, ds.Collection)
			if err != nil {
				return err
			}
			log.Info().Int("updated", updated).Int("deleted", deleted).Msg("CRUD complete")
			return nil
		})

		o.measure(ctx, "Export "+ds.Label, func(ctx context.Context) error {
			path, err := o.adapter.ExportData(ctx, ds.Collection)
			if err != nil {
				return err
			}
			log.Info().Str("path", path).Msg("Collection exported")
			return nil
		})
	}

	if err := o.store.SaveRun(o.backend.Name, o.run); err != nil {
		log.Error().Err(err).Str("backend", o.backend.Name).Msg("Failed to persist metrics")
	}
	o.logSummary()

	return o.run, nil
}

// measure times one labeled operation with a fresh resource monitor
// running alongside it. A failure inside fn is absorbed here: it is
// logged, the entry is marked failed, and the lifecycle moves on. The
// monitor is stopped on every exit path.
func (o *Orchestrator) measure(ctx context.Context, label string, fn func(context.Context) error) {
	log.Info().Str("operation", label).Msg("Starting operation")

	monitor := NewResourceMonitor(o.provider, o.target, o.interval)
	monitor.Start()

	var (
		resources ResourceAggregate
		elapsed   time.Duration
	)
	start := time.Now()
	err := func() error {
		defer func() {
			elapsed = time.Since(start)
			resources = monitor.Stop()
		}()
		return fn(ctx)
	}()

	if err != nil {
		log.Error().Err(err).Str("operation", label).Msg("Operation failed")
	}

	entry := MetricEntry{
		DurationSeconds: round4(elapsed.Seconds()),
		Failed:          err != nil,
		Resources:       resources,
	}
	o.run.Put(label, entry)

	log.Info().
		Str("operation", label).
		Float64("duration_s", entry.DurationSeconds).
		Float64("cpu_avg", resources.CPUAvg).
		Float64("ram_avg_mb", resources.MemAvgMB).
		Msg("Finished operation")
}

func (o *Orchestrator) logSummary() {
	log.Info().Str("backend", o.backend.Name).Msg("Benchmark summary")
	for _, label := range o.run.Labels() {
		entry, _ := o.run.Get(label)
		event := log.Info().
			Str("operation", label).
			Float64("duration_s", entry.DurationSeconds).
			Float64("cpu_avg", entry.Resources.CPUAvg).
			Float64("ram_avg_mb", entry.Resources.MemAvgMB)
		if entry.Failed {
			event = event.Bool("failed", true)
		}
		event.Msg("Result")
	}
}

func setupLog(cfg *Config) {
	if strings.ToLower(cfg.LogFormat) == "json" {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		log.Logger = log.Output(os.Stdout)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}
}
