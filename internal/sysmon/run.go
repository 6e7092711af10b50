// Package sysmon watches per-CPU usage and frequency. It is the workload
// the span hygiene examples instrument.
//
// A Monitor takes an Observation every interval, each in its own root span,
// and sends it over a channel of capacity 2 to Stats, which logs averages
// over a sliding window and forwards the observation or closes it.
package sysmon

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run starts a Monitor and Stats and blocks until ctx is done or either
// stops. Observations are forwarded to outbound after processing; with a
// nil outbound they are closed by Stats. Run closes outbound on return, and
// the receiver owns closing every Observation it gets.
func Run(ctx context.Context, every time.Duration, sampler Sampler, outbound chan<- *Observation, opts ...Option) error {
	ch := make(chan *Observation, 2)

	monitor, err := NewMonitor(sampler, every, ch, opts...)
	if err != nil {
		if outbound != nil {
			close(outbound)
		}
		return err
	}
	stats, err := NewStats(ch, outbound, opts...)
	if err != nil {
		close(ch)
		if outbound != nil {
			close(outbound)
		}
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return monitor.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return stats.Run(gctx)
	})
	return g.Wait()
}
