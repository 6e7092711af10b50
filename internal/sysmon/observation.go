package sysmon

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// Observation is one round of CPU stats. It owns the span it was taken in:
// the span stays open until Close, however long the observation is kept.
type Observation struct {
	id      int64
	ctx     context.Context
	span    trace.Span
	cpus    []CPUStats
	metrics *Metrics
	logger  *logging.Logger
	closed  atomic.Bool
}

// NewObservation wraps cpus and the span ctx carries, and records the
// observation metrics.
func NewObservation(ctx context.Context, id int64, cpus []CPUStats, m *Metrics, logger *logging.Logger) *Observation {
	if logger == nil {
		logger = logging.NewNop()
	}
	m.recordObservation(ctx, cpus)
	return &Observation{
		id:      id,
		ctx:     ctx,
		span:    trace.SpanFromContext(ctx),
		cpus:    cpus,
		metrics: m,
		logger:  logger,
	}
}

// ID is the monitor's sequence number for this observation.
func (o *Observation) ID() int64 { return o.id }

// CPUs returns the sampled stats. Callers must not modify the slice.
func (o *Observation) CPUs() []CPUStats { return o.cpus }

// Span returns the observation span.
func (o *Observation) Span() trace.Span { return o.span }

// Context carries the observation span.
func (o *Observation) Context() context.Context { return o.ctx }

// InScope runs fn with the observation span as the current span.
func (o *Observation) InScope(fn func(ctx context.Context, cpus []CPUStats)) {
	fn(o.ctx, o.cpus)
}

// Closed reports whether Close has run.
func (o *Observation) Closed() bool { return o.closed.Load() }

// Close ends the observation span and decrements observations_live. Only
// the first call has any effect.
func (o *Observation) Close() {
	if !o.closed.CompareAndSwap(false, true) {
		return
	}
	o.logger.Trace(o.ctx, "dropping observation", zap.Int64("observation_id", o.id))
	o.span.End()
	o.metrics.observationClosed(o.ctx)
}
