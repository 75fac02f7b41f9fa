package benchmark

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)

	// No explicit path and no file in the working directory falls back
	// to the built-in defaults.
	cfg = DefaultConfig()
	assert.Len(t, cfg.Backends, 3)
	assert.Len(t, cfg.Datasets, 2)
	assert.Equal(t, "results", cfg.ResultsDir)
	assert.Equal(t, defaultSampleInterval, cfg.SampleInterval)
}

func TestLoadConfig_FileReplacesLists(t *testing.T) {
	path := writeFixture(t, "store-bench.yaml", `
backends:
  - name: only
    type: sqlite
    path: /tmp/only.db
datasets:
  - path: data/books.json
    collection: books
    label: Books
    predicate:
      numeric_field: rating
      numeric_min: 3
results_dir: out
update_limit: 500
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "only", cfg.Backends[0].Name)
	require.Len(t, cfg.Datasets, 1)
	assert.Equal(t, 3.0, cfg.Datasets[0].Predicate.NumericMin)
	assert.Equal(t, "out", cfg.ResultsDir)
	assert.Equal(t, 500, cfg.UpdateLimit)

	// Unset scalars keep their defaults.
	assert.Equal(t, 10000, cfg.InsertBatchSize)
}

func TestLoadConfig_ExpandsDSNEnv(t *testing.T) {
	t.Setenv("BENCH_PG_USER", "tester")

	path := writeFixture(t, "store-bench.yaml", `
backends:
  - name: pg
    type: postgres
    dsn: postgres://${BENCH_PG_USER}@localhost:5432/bench
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://tester@localhost:5432/bench", cfg.Backends[0].DSN)
}

func TestFilterBackends(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.FilterBackends([]string{"sqlite", "pebble"}))
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "sqlite", cfg.Backends[0].Name)
	assert.Equal(t, "pebble", cfg.Backends[1].Name)
}

func TestFilterBackends_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.FilterBackends([]string{"mongo"}))
}

func TestFilterBackends_EmptyKeepsAll(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.FilterBackends(nil))
	assert.Len(t, cfg.Backends, 3)
}

func TestAdapterOptionsFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	opts := cfg.AdapterOptions()

	assert.Equal(t, cfg.ResultsDir, opts.ResultsDir)
	assert.Equal(t, cfg.UpdateLimit, opts.UpdateLimit)
	assert.Contains(t, opts.Predicates, "goodreads")
	assert.Contains(t, opts.Predicates, "amazon")
}
