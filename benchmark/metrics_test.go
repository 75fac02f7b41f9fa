package benchmark

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchmarkRun_PutPreservesOrder(t *testing.T) {
	run := NewBenchmarkRun()
	run.Put("Import X", MetricEntry{DurationSeconds: 1})
	run.Put("CRUD X", MetricEntry{DurationSeconds: 2})
	run.Put("Export X", MetricEntry{DurationSeconds: 3})

	assert.Equal(t, []string{"Import X", "CRUD X", "Export X"}, run.Labels())

	// Overwriting keeps the original position.
	run.Put("CRUD X", MetricEntry{DurationSeconds: 9})
	assert.Equal(t, []string{"Import X", "CRUD X", "Export X"}, run.Labels())
	entry, ok := run.Get("CRUD X")
	require.True(t, ok)
	assert.Equal(t, 9.0, entry.DurationSeconds)
	assert.Equal(t, 3, run.Len())
}

func TestBenchmarkRun_JSONRoundTrip(t *testing.T) {
	run := NewBenchmarkRun()
	run.Put("Import Goodreads", MetricEntry{
		DurationSeconds: 12.3456,
		Resources: ResourceAggregate{
			CPUAvg:        20.5,
			CPUMax:        31.25,
			MemAvgMB:      512.01,
			MemMaxMB:      640.99,
			MemAvgPercent: 6.25,
		},
	})
	run.Put("CRUD Goodreads", MetricEntry{DurationSeconds: 0.5, Failed: true})

	data, err := json.Marshal(run)
	require.NoError(t, err)

	restored := NewBenchmarkRun()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, run.Len(), restored.Len())
	for _, label := range run.Labels() {
		want, _ := run.Get(label)
		got, ok := restored.Get(label)
		require.True(t, ok, "missing label %q", label)
		assert.Equal(t, want, got)
	}
}

func TestBenchmarkRun_MarshalKeyOrder(t *testing.T) {
	run := NewBenchmarkRun()
	run.Put("b", MetricEntry{})
	run.Put("a", MetricEntry{})

	data, err := json.Marshal(run)
	require.NoError(t, err)

	// Execution order survives serialization.
	assert.Less(t, strings.Index(string(data), `"b"`), strings.Index(string(data), `"a"`))
}

func TestBackendResult_MarshalError(t *testing.T) {
	data, err := json.Marshal(BackendResult{Err: "failed to connect: boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "failed to connect: boom"}`, string(data))
}

func TestBackendResult_MarshalRun(t *testing.T) {
	run := NewBenchmarkRun()
	run.Put("Import X", MetricEntry{DurationSeconds: 1.5})

	data, err := json.Marshal(BackendResult{Run: run})
	require.NoError(t, err)

	var decoded map[string]MetricEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1.5, decoded["Import X"].DurationSeconds)
}
