package benchmark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// dockerAPI is the subset of the Docker client the stats provider uses.
// Kept narrow so tests can fake it.
type dockerAPI interface {
	ContainerStatsOneShot(ctx context.Context, containerID string) (container.StatsResponseReader, error)
	Close() error
}

// DockerStatsProvider samples CPU and memory for a container, yielding
// the same numbers `docker stats` reports.
type DockerStatsProvider struct {
	api dockerAPI
}

// NewDockerStatsProvider connects to the local Docker daemon using the
// standard environment configuration.
func NewDockerStatsProvider() (*DockerStatsProvider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerStatsProvider{api: cli}, nil
}

// Close releases the underlying docker client connection.
func (p *DockerStatsProvider) Close() error {
	return p.api.Close()
}

// Stats implements StatsProvider. The target is a container name or ID.
func (p *DockerStatsProvider) Stats(ctx context.Context, target string) (ResourceSample, error) {
	resp, err := p.api.ContainerStatsOneShot(ctx, target)
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to read stats for container %s: %w", target, err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return ResourceSample{}, fmt.Errorf("failed to decode stats for container %s: %w", target, err)
	}

	usage := memoryUsage(&stats)
	return ResourceSample{
		CPUPercent: cpuPercent(&stats),
		MemMB:      usage / (1 << 20),
		MemPercent: memoryPercent(&stats, usage),
	}, nil
}

// cpuPercent applies the delta formula the docker CLI uses.
func cpuPercent(s *container.StatsResponse) float64 {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(s.CPUStats.SystemUsage) - float64(s.PreCPUStats.SystemUsage)
	if cpuDelta <= 0 || sysDelta <= 0 {
		return 0
	}

	online := float64(s.CPUStats.OnlineCPUs)
	if online == 0 {
		online = float64(len(s.CPUStats.CPUUsage.PercpuUsage))
	}
	return cpuDelta / sysDelta * online * 100
}

// memoryUsage returns usage in bytes with the page cache excluded.
// cgroup v2 reports the cache as inactive_file, v1 as cache.
func memoryUsage(s *container.StatsResponse) float64 {
	usage := float64(s.MemoryStats.Usage)
	if v, ok := s.MemoryStats.Stats["inactive_file"]; ok {
		usage -= float64(v)
	} else if v, ok := s.MemoryStats.Stats["cache"]; ok {
		usage -= float64(v)
	}
	if usage < 0 {
		return 0
	}
	return usage
}

func memoryPercent(s *container.StatsResponse, usage float64) float64 {
	if s.MemoryStats.Limit == 0 {
		return 0
	}
	return usage / float64(s.MemoryStats.Limit) * 100
}
