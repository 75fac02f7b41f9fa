package benchmark

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
)

// TargetSelf monitors the benchmark process itself. Embedded engines
// run in-process, so their resource cost shows up here rather than in
// a container.
const TargetSelf = "self"

// ProcessStatsProvider samples CPU and memory for a local process,
// addressed either as "self" or as a numeric PID.
type ProcessStatsProvider struct{}

// Stats implements StatsProvider.
func (ProcessStatsProvider) Stats(ctx context.Context, target string) (ResourceSample, error) {
	pid := os.Getpid()
	if target != "" && target != TargetSelf {
		parsed, err := strconv.Atoi(target)
		if err != nil {
			return ResourceSample{}, fmt.Errorf("invalid process target %q: %w", target, err)
		}
		pid = parsed
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	cpu, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to read cpu usage for process %d: %w", pid, err)
	}
	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to read memory usage for process %d: %w", pid, err)
	}
	memPct, err := proc.MemoryPercentWithContext(ctx)
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to read memory percent for process %d: %w", pid, err)
	}

	return ResourceSample{
		CPUPercent: cpu,
		MemMB:      float64(memInfo.RSS) / (1 << 20),
		MemPercent: float64(memPct),
	}, nil
}
