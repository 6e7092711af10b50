package telemetry

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// SpanCounter is a span processor that counts span starts and ends per
// instrumentation scope. Spans that are started and never ended show up as
// a rising tracing_spans_open gauge.
type SpanCounter struct {
	started *prometheus.CounterVec
	ended   *prometheus.CounterVec
	open    *prometheus.GaugeVec

	startedTotal atomic.Int64
	endedTotal   atomic.Int64
}

// NewSpanCounter registers the span lifecycle metrics on reg.
func NewSpanCounter(reg prometheus.Registerer) *SpanCounter {
	factory := promauto.With(reg)
	return &SpanCounter{
		started: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracing",
			Name:      "spans_started_total",
			Help:      "Spans started, by instrumentation scope",
		}, []string{"scope"}),
		ended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracing",
			Name:      "spans_ended_total",
			Help:      "Spans ended, by instrumentation scope",
		}, []string{"scope"}),
		open: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tracing",
			Name:      "spans_open",
			Help:      "Spans started but not yet ended, by instrumentation scope",
		}, []string{"scope"}),
	}
}

func (c *SpanCounter) OnStart(_ context.Context, s trace.ReadWriteSpan) {
	scope := s.InstrumentationScope().Name
	c.started.WithLabelValues(scope).Inc()
	c.open.WithLabelValues(scope).Inc()
	c.startedTotal.Add(1)
}

func (c *SpanCounter) OnEnd(s trace.ReadOnlySpan) {
	scope := s.InstrumentationScope().Name
	c.ended.WithLabelValues(scope).Inc()
	c.open.WithLabelValues(scope).Dec()
	c.endedTotal.Add(1)
}

func (c *SpanCounter) Shutdown(context.Context) error   { return nil }
func (c *SpanCounter) ForceFlush(context.Context) error { return nil }

// Started returns the number of spans started across all scopes.
func (c *SpanCounter) Started() int64 {
	if c == nil {
		return 0
	}
	return c.startedTotal.Load()
}

// Ended returns the number of spans ended across all scopes.
func (c *SpanCounter) Ended() int64 {
	if c == nil {
		return 0
	}
	return c.endedTotal.Load()
}

// Open returns the number of spans currently open across all scopes.
func (c *SpanCounter) Open() int64 {
	return c.Started() - c.Ended()
}

// logProcessor makes span lifecycle visible on the console: opens at trace,
// closes at debug. Records go through a logger named after the span's
// instrumentation scope, so the log filter directive applies per scope.
type logProcessor struct {
	logger *logging.Logger
}

func newLogProcessor(logger *logging.Logger) trace.SpanProcessor {
	return &logProcessor{logger: logger}
}

func (p *logProcessor) OnStart(parent context.Context, s trace.ReadWriteSpan) {
	l := p.logger.Named(s.InstrumentationScope().Name)
	if !l.Enabled(logging.TraceLevel) {
		return
	}
	sc := s.SpanContext()
	l.Trace(context.Background(), "span opened",
		zap.String("span", s.Name()),
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (p *logProcessor) OnEnd(s trace.ReadOnlySpan) {
	sc := s.SpanContext()
	p.logger.Named(s.InstrumentationScope().Name).Debug(context.Background(), "span closed",
		zap.String("span", s.Name()),
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.Duration("busy", s.EndTime().Sub(s.StartTime())),
		zap.String("status", s.Status().Code.String()),
	)
}

func (p *logProcessor) Shutdown(context.Context) error   { return nil }
func (p *logProcessor) ForceFlush(context.Context) error { return nil }
