package sysmon

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/hygiene"
	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// Summary is the result of one stats pass over the window.
type Summary struct {
	Count          int     `json:"count"` // observations in the window
	CPUs           float64 `json:"cpus"`  // average CPUs per observation
	AverageUsage   float64 `json:"average_usage"`
	AverageFreqMHz float64 `json:"average_freq_mhz"`
}

// Summarize averages usage and frequency over every CPU of every
// observation in window.
func Summarize(window [][]CPUStats) Summary {
	s := Summary{Count: len(window)}
	var n int
	var usage, freq float64
	for _, cpus := range window {
		for _, c := range cpus {
			usage += c.Usage
			freq += c.FrequencyMHz
			n++
		}
	}
	if n == 0 {
		return s
	}
	s.CPUs = float64(n) / float64(len(window))
	s.AverageUsage = usage / float64(n)
	s.AverageFreqMHz = freq / float64(n)
	return s
}

// Stats keeps a sliding window of observations, logs a summary for each one
// received, and forwards observations to outbound. Without an outbound
// channel it closes each observation once processed.
type Stats struct {
	inbound  <-chan *Observation
	outbound chan<- *Observation

	tracer trace.Tracer
	logger *logging.Logger
	size   int

	mu     sync.Mutex
	window [][]CPUStats
	last   Summary
}

// NewStats creates a stats processor. outbound may be nil. Run closes
// outbound when it returns.
func NewStats(inbound <-chan *Observation, outbound chan<- *Observation, opts ...Option) (*Stats, error) {
	if inbound == nil {
		return nil, fmt.Errorf("inbound channel cannot be nil")
	}
	o := newOptions(opts)
	return &Stats{
		inbound:  inbound,
		outbound: outbound,
		tracer:   o.tracerProvider.Tracer(StatsScope),
		logger:   o.logger.Named("sysmon").Named("stats"),
		size:     o.window,
		window:   make([][]CPUStats, 0, o.window),
	}, nil
}

// Run processes observations until inbound is closed or ctx is done.
// Observations still queued when ctx ends are closed.
func (s *Stats) Run(ctx context.Context) error {
	if s.outbound != nil {
		defer close(s.outbound)
	}

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case obs, ok := <-s.inbound:
			if !ok {
				return nil
			}
			obs.InScope(s.process)

			if s.outbound == nil {
				obs.Close()
				continue
			}
			select {
			case s.outbound <- obs:
			case <-ctx.Done():
				obs.Close()
				s.drain()
				return nil
			}
		}
	}
}

// Last returns the most recent summary.
func (s *Stats) Last() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Stats) process(ctx context.Context, cpus []CPUStats) {
	s.mu.Lock()
	if len(s.window) == s.size {
		copy(s.window, s.window[1:])
		s.window = s.window[:len(s.window)-1]
	}
	s.window = append(s.window, append([]CPUStats(nil), cpus...))
	s.mu.Unlock()

	_ = hygiene.WithSpan(ctx, s.tracer, "Computing stats", func(ctx context.Context) error {
		s.mu.Lock()
		summary := Summarize(s.window)
		s.last = summary
		s.mu.Unlock()

		s.logger.Info(ctx, "finished cpu stats",
			zap.Int("count", summary.Count),
			zap.Float64("cpus", summary.CPUs),
			zap.Float64("average_usage", summary.AverageUsage),
			zap.Float64("average_freq_mhz", summary.AverageFreqMHz),
		)
		return nil
	})
}

// drain closes observations left in inbound once the monitor has stopped.
func (s *Stats) drain() {
	for obs := range s.inbound {
		obs.Close()
	}
}
