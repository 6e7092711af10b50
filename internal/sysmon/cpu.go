package sysmon

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUStats is one logical CPU at the time of an observation.
type CPUStats struct {
	Name         string  `json:"name"`
	Usage        float64 `json:"usage"` // percent, 0-100
	FrequencyMHz float64 `json:"frequency_mhz"`
}

// Sampler reads the current per-CPU usage and frequency.
type Sampler interface {
	Sample(ctx context.Context) ([]CPUStats, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) ([]CPUStats, error)

func (f SamplerFunc) Sample(ctx context.Context) ([]CPUStats, error) {
	return f(ctx)
}

// HostSampler samples the host with gopsutil. Usage is measured since the
// previous Sample call.
type HostSampler struct{}

// NewHostSampler primes the usage counters so the first Sample reports the
// interval since construction rather than since boot.
func NewHostSampler(ctx context.Context) (*HostSampler, error) {
	if _, err := cpu.PercentWithContext(ctx, 0, true); err != nil {
		return nil, fmt.Errorf("reading cpu times: %w", err)
	}
	return &HostSampler{}, nil
}

func (*HostSampler) Sample(ctx context.Context) ([]CPUStats, error) {
	usage, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return nil, fmt.Errorf("reading cpu usage: %w", err)
	}
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cpu info: %w", err)
	}

	stats := make([]CPUStats, len(usage))
	for i, u := range usage {
		stats[i] = CPUStats{Name: fmt.Sprintf("cpu%d", i), Usage: u}
		// Some platforms report one info entry per package, not per core.
		switch {
		case i < len(infos):
			stats[i].FrequencyMHz = infos[i].Mhz
		case len(infos) > 0:
			stats[i].FrequencyMHz = infos[0].Mhz
		}
	}
	return stats, nil
}
