package benchmark

import (
	"context"
	"sync"
	"time"
)

const (
	defaultSampleInterval = 500 * time.Millisecond

	// statsTickTimeout bounds a single provider query. A hung provider
	// degrades to skipped ticks instead of stalling the operation.
	statsTickTimeout = 5 * time.Second
)

// StatsProvider supplies current CPU/memory usage for a monitored
// target: a container name for server backends, a process for embedded
// ones.
type StatsProvider interface {
	Stats(ctx context.Context, target string) (ResourceSample, error)
}

// ResourceMonitor polls a StatsProvider in the background while a
// benchmark operation runs in the foreground. A monitor is single use:
// one Start/Stop pair, and a fresh instance per measured operation, so
// no operation's profile leaks samples from a neighbor.
type ResourceMonitor struct {
	provider StatsProvider
	target   string
	interval time.Duration

	// samples is written only by the polling goroutine and read only
	// after Stop has joined it.
	samples []ResourceSample
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewResourceMonitor(provider StatsProvider, target string, interval time.Duration) *ResourceMonitor {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	return &ResourceMonitor{
		provider: provider,
		target:   target,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins concurrent polling. One sample is attempted immediately
// so short operations still get a reading.
func (m *ResourceMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.sampleOnce()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.sampleOnce()
			}
		}
	}()
}

// sampleOnce queries the provider with a bounded timeout. A failed
// query is a skipped tick; the buffer only ever holds genuinely
// observed values.
func (m *ResourceMonitor) sampleOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), statsTickTimeout)
	defer cancel()

	sample, err := m.provider.Stats(ctx, m.target)
	if err != nil {
		return
	}
	m.samples = append(m.samples, sample)
}

// Stop ends polling, waits for the goroutine to cease, and returns the
// aggregate over everything collected since Start. With zero collected
// samples the aggregate is all zeros.
func (m *ResourceMonitor) Stop() ResourceAggregate {
	close(m.done)
	m.wg.Wait()
	return aggregate(m.samples)
}
