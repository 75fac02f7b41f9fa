package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsStore persists benchmark results under a results directory:
// one metrics file per backend, a combined results file, and the
// comparative report.
type MetricsStore struct {
	dir string
}

func NewMetricsStore(dir string) *MetricsStore {
	return &MetricsStore{dir: dir}
}

func (s *MetricsStore) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory %s: %w", s.dir, err)
	}
	return nil
}

// RunPath returns the metrics file for a backend.
func (s *MetricsStore) RunPath(backend string) string {
	return filepath.Join(s.dir, fmt.Sprintf("metrics_%s.json", strings.ToLower(backend)))
}

// SaveRun writes one backend's metrics to metrics_<backend>.json.
func (s *MetricsStore) SaveRun(backend string, run *BenchmarkRun) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	path := s.RunPath(backend)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	log.Info().Str("backend", backend).Str("path", path).Msg("Metrics saved")
	return nil
}

// LoadRun reads a previously persisted backend run.
func (s *MetricsStore) LoadRun(backend string) (*BenchmarkRun, error) {
	data, err := os.ReadFile(s.RunPath(backend))
	if err != nil {
		return nil, err
	}

	run := NewBenchmarkRun()
	if err := json.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics for %s: %w", backend, err)
	}
	return run, nil
}

// SaveCombined writes the all-backends result mapping to
// all_metrics.json, with {"error": ...} placeholders for backends that
// produced no metrics.
func (s *MetricsStore) SaveCombined(results map[string]BackendResult) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal combined results: %w", err)
	}

	path := filepath.Join(s.dir, "all_metrics.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write combined results: %w", err)
	}

	log.Info().Str("path", path).Msg("Combined results saved")
	return nil
}

// SaveComparative writes the comparative report to a timestamped CSV
// file and returns its path.
func (s *MetricsStore) SaveComparative(report *ComparativeReport) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("comparative_report_%s.csv", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := report.WriteCSV(f); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
