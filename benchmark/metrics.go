package benchmark

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
)

// ResourceSample is a single point-in-time observation of the monitored
// target's CPU and memory usage.
type ResourceSample struct {
	CPUPercent float64
	MemMB      float64
	MemPercent float64
}

// ResourceAggregate summarizes the samples collected while one operation
// was running. JSON keys match the metrics files produced by earlier
// versions of this tool, so old result sets stay comparable.
type ResourceAggregate struct {
	CPUAvg        float64 `json:"container_cpu_avg"`
	CPUMax        float64 `json:"container_cpu_max"`
	MemAvgMB      float64 `json:"container_mem_avg_mb"`
	MemMaxMB      float64 `json:"container_mem_max_mb"`
	MemAvgPercent float64 `json:"container_mem_avg_percent"`
}

// MetricEntry records one measured operation: wall-clock duration plus
// the resource aggregate sampled while it ran. Failed marks entries
// whose wrapped operation returned an error; the measurement itself is
// still valid.
type MetricEntry struct {
	DurationSeconds float64           `json:"duration_seconds"`
	Failed          bool              `json:"failed,omitempty"`
	Resources       ResourceAggregate `json:"resources"`
}

// aggregate computes the summary statistics over a sample set. An empty
// set yields the zero aggregate, never an error: sampling must not fail
// the measurement it supports.
func aggregate(samples []ResourceSample) ResourceAggregate {
	if len(samples) == 0 {
		return ResourceAggregate{}
	}

	var agg ResourceAggregate
	for _, s := range samples {
		agg.CPUAvg += s.CPUPercent
		agg.MemAvgMB += s.MemMB
		agg.MemAvgPercent += s.MemPercent
		agg.CPUMax = math.Max(agg.CPUMax, s.CPUPercent)
		agg.MemMaxMB = math.Max(agg.MemMaxMB, s.MemMB)
	}

	n := float64(len(samples))
	agg.CPUAvg = round2(agg.CPUAvg / n)
	agg.CPUMax = round2(agg.CPUMax)
	agg.MemAvgMB = round2(agg.MemAvgMB / n)
	agg.MemMaxMB = round2(agg.MemMaxMB)
	agg.MemAvgPercent = round2(agg.MemAvgPercent / n)
	return agg
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// BenchmarkRun holds the metrics of one backend's full lifecycle
// execution, keyed by operation label. Insertion order reflects
// execution order and is preserved for display; lookups are by label.
type BenchmarkRun struct {
	labels  []string
	entries map[string]MetricEntry
}

func NewBenchmarkRun() *BenchmarkRun {
	return &BenchmarkRun{
		entries: make(map[string]MetricEntry),
	}
}

// Put adds or replaces the entry for label. A replaced label keeps its
// original position.
func (r *BenchmarkRun) Put(label string, entry MetricEntry) {
	if _, ok := r.entries[label]; !ok {
		r.labels = append(r.labels, label)
	}
	r.entries[label] = entry
}

// Get returns the entry recorded for label, if any.
func (r *BenchmarkRun) Get(label string) (MetricEntry, bool) {
	e, ok := r.entries[label]
	return e, ok
}

// Labels returns the operation labels in execution order.
func (r *BenchmarkRun) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

func (r *BenchmarkRun) Len() int {
	return len(r.labels)
}

// MarshalJSON writes the run as a plain JSON object keyed by label, in
// execution order.
func (r *BenchmarkRun) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range r.labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.entries[label])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a persisted run. JSON objects carry no order,
// so labels come back sorted; order is informational only.
func (r *BenchmarkRun) UnmarshalJSON(data []byte) error {
	entries := make(map[string]MetricEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	labels := make([]string, 0, len(entries))
	for label := range entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	r.labels = labels
	r.entries = entries
	return nil
}

// BackendResult is the outcome of one backend's benchmark: either a
// completed run or the error that kept it from producing one.
type BackendResult struct {
	Run *BenchmarkRun
	Err string
}

// OK reports whether the backend produced usable metrics.
func (r BackendResult) OK() bool {
	return r.Err == "" && r.Run != nil
}

// MarshalJSON writes either the run's metrics mapping or an
// {"error": ...} placeholder, matching the combined results format.
func (r BackendResult) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return json.Marshal(map[string]string{"error": r.Err})
	}
	return json.Marshal(r.Run)
}
