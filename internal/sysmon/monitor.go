package sysmon

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/hygiene"
	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// Monitor takes an observation every interval and sends it on outbound.
// Each observation is a root span named "Observation" that the receiver
// is responsible for ending through Observation.Close.
type Monitor struct {
	sampler  Sampler
	every    time.Duration
	outbound chan<- *Observation

	tracer    trace.Tracer
	metrics   *Metrics
	logger    *logging.Logger
	obsLogger *logging.Logger
	counter   int64
}

// NewMonitor creates a monitor. Run closes outbound when it returns.
func NewMonitor(sampler Sampler, every time.Duration, outbound chan<- *Observation, opts ...Option) (*Monitor, error) {
	if sampler == nil {
		return nil, fmt.Errorf("sampler cannot be nil")
	}
	if every <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", every)
	}
	if outbound == nil {
		return nil, fmt.Errorf("outbound channel cannot be nil")
	}

	o := newOptions(opts)
	logger := o.logger.Named("sysmon")
	return &Monitor{
		sampler:   sampler,
		every:     every,
		outbound:  outbound,
		tracer:    o.tracerProvider.Tracer(MonitorScope),
		metrics:   NewMetrics(o.meterProvider.Meter(meterName), logger),
		logger:    logger.Named("monitor"),
		obsLogger: logger.Named("observation"),
	}, nil
}

// Run observes immediately and then once per interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.outbound)

	ticker := time.NewTicker(m.every)
	defer ticker.Stop()

	for {
		if obs, err := m.observe(ctx); err == nil {
			select {
			case m.outbound <- obs:
			case <-ctx.Done():
				obs.Close()
				m.logger.Debug(ctx, "monitor stopped")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			m.logger.Debug(ctx, "monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) observe(ctx context.Context) (*Observation, error) {
	id := m.counter
	ctx, span := m.tracer.Start(ctx, "Observation",
		trace.WithNewRoot(),
		trace.WithAttributes(attribute.Int64("observation_id", id)),
	)

	m.logger.Trace(ctx, "taking observation")
	cpus, err := hygiene.WithSpanResult(ctx, m.tracer, "Taking observation", m.takeObservation)
	if err != nil {
		span.SetStatus(codes.Error, "observation failed")
		span.End()
		m.logger.Warn(ctx, "observation failed", zap.Int64("observation_id", id), zap.Error(err))
		return nil, err
	}

	return NewObservation(ctx, id, cpus, m.metrics, m.obsLogger), nil
}

func (m *Monitor) takeObservation(ctx context.Context) ([]CPUStats, error) {
	cpus, err := m.sampler.Sample(ctx)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("cpus", len(cpus)))
	m.logger.Trace(ctx, "refreshed cpu information", zap.Int("cpus", len(cpus)))

	m.counter++
	return cpus, nil
}
