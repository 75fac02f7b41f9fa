package benchmark

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticProvider struct {
	sample ResourceSample
	err    error
	calls  atomic.Int64
}

func (p *staticProvider) Stats(ctx context.Context, target string) (ResourceSample, error) {
	p.calls.Add(1)
	if p.err != nil {
		return ResourceSample{}, p.err
	}
	return p.sample, nil
}

func TestAggregate(t *testing.T) {
	samples := []ResourceSample{
		{CPUPercent: 10, MemMB: 100, MemPercent: 5},
		{CPUPercent: 20, MemMB: 200, MemPercent: 10},
		{CPUPercent: 30, MemMB: 300, MemPercent: 15},
	}

	agg := aggregate(samples)

	assert.Equal(t, 20.0, agg.CPUAvg)
	assert.Equal(t, 30.0, agg.CPUMax)
	assert.Equal(t, 200.0, agg.MemAvgMB)
	assert.Equal(t, 300.0, agg.MemMaxMB)
	assert.Equal(t, 10.0, agg.MemAvgPercent)
}

func TestAggregate_Empty(t *testing.T) {
	agg := aggregate(nil)
	assert.Equal(t, ResourceAggregate{}, agg)
}

func TestAggregate_Rounding(t *testing.T) {
	samples := []ResourceSample{
		{CPUPercent: 1.25, MemMB: 1.0625, MemPercent: 0.125},
		{CPUPercent: 2.5, MemMB: 1.0625, MemPercent: 0.375},
	}

	agg := aggregate(samples)

	// Averages land on two decimals, halves rounding away from zero.
	assert.Equal(t, 1.88, agg.CPUAvg)
	assert.Equal(t, 2.5, agg.CPUMax)
	assert.Equal(t, 1.06, agg.MemAvgMB)
	assert.Equal(t, 0.25, agg.MemAvgPercent)
}

func TestResourceMonitor_CollectsSamples(t *testing.T) {
	provider := &staticProvider{sample: ResourceSample{CPUPercent: 50, MemMB: 128, MemPercent: 12.5}}
	monitor := NewResourceMonitor(provider, "target", time.Millisecond)
	monitor.Start()

	time.Sleep(20 * time.Millisecond)
	agg := monitor.Stop()

	assert.Greater(t, provider.calls.Load(), int64(0))
	assert.Equal(t, 50.0, agg.CPUAvg)
	assert.Equal(t, 50.0, agg.CPUMax)
	assert.Equal(t, 128.0, agg.MemAvgMB)
	assert.Equal(t, 128.0, agg.MemMaxMB)
	assert.Equal(t, 12.5, agg.MemAvgPercent)
}

func TestResourceMonitor_AllTicksFail(t *testing.T) {
	provider := &staticProvider{err: errors.New("provider unreachable")}
	monitor := NewResourceMonitor(provider, "target", time.Millisecond)
	monitor.Start()

	time.Sleep(10 * time.Millisecond)
	agg := monitor.Stop()

	// Failed ticks are skipped, never recorded as zero samples; with no
	// samples at all the aggregate is the zero value.
	assert.Greater(t, provider.calls.Load(), int64(0))
	assert.Equal(t, ResourceAggregate{}, agg)
}

func TestResourceMonitor_StopWithoutDelay(t *testing.T) {
	provider := &staticProvider{sample: ResourceSample{CPUPercent: 1}}
	monitor := NewResourceMonitor(provider, "target", time.Hour)
	monitor.Start()
	agg := monitor.Stop()

	// The initial sample may or may not have landed; either way Stop
	// returns a well-formed aggregate.
	assert.GreaterOrEqual(t, agg.CPUAvg, 0.0)
	assert.GreaterOrEqual(t, agg.CPUMax, agg.CPUAvg)
}
