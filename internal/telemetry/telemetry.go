package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// ErrAlreadyInitialized is returned by Init when telemetry has already been
// installed in this process.
var ErrAlreadyInitialized = errors.New("telemetry already initialized")

// installed guards the process-wide providers.
var installed atomic.Bool

// Telemetry owns the tracer and meter providers and the Prometheus registry
// that /metrics serves.
//
// Export failures do not crash the application; they are logged and the
// instance is marked degraded.
type Telemetry struct {
	config *Config
	logger *logging.Logger

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry
	spans          *SpanCounter

	// Health tracking
	healthy  atomic.Bool
	degraded atomic.Bool
	shutdown atomic.Bool
}

// Option configures Telemetry construction.
type Option func(*options)

type options struct {
	exporter   trace.SpanExporter
	processors []trace.SpanProcessor
	registry   *prometheus.Registry
	readers    []sdkmetric.Reader
}

// WithSpanExporter replaces the exporter selected by Config.Exporter. The
// exporter still sits behind the otel filter and the batcher.
func WithSpanExporter(exp trace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exp
	}
}

// WithSpanProcessor adds an unfiltered span processor (e.g. a
// tracetest.SpanRecorder).
func WithSpanProcessor(p trace.SpanProcessor) Option {
	return func(o *options) {
		o.processors = append(o.processors, p)
	}
}

// WithRegistry uses reg instead of a fresh Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithMetricReader adds a metric reader next to the Prometheus reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		o.readers = append(o.readers, r)
	}
}

// Init creates telemetry and installs it as the process-wide tracer and
// meter providers. It may succeed once per process; later calls return
// ErrAlreadyInitialized.
func Init(ctx context.Context, cfg *Config, logger *logging.Logger, opts ...Option) (*Telemetry, error) {
	if !installed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}

	t, err := New(ctx, cfg, logger, opts...)
	if err != nil {
		installed.Store(false)
		return nil, err
	}

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	errLogger := t.logger.Named("otel")
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		errLogger.Warn(context.Background(), "opentelemetry error", zap.Error(err))
	}))

	t.logger.Info(ctx, "telemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("exporter", cfg.Exporter),
		zap.String("protocol", cfg.Protocol),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("otel_filter", cfg.Filter),
	)
	return t, nil
}

// New creates a Telemetry without touching the otel globals.
func New(ctx context.Context, cfg *Config, logger *logging.Logger, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	t := &Telemetry{
		config:   cfg,
		logger:   logger.Named("telemetry"),
		registry: o.registry,
	}
	t.healthy.Store(true)

	if t.registry == nil {
		t.registry = prometheus.NewRegistry()
	}
	if err := registerRuntimeCollectors(t.registry); err != nil {
		return nil, fmt.Errorf("registering runtime collectors: %w", err)
	}
	t.spans = NewSpanCounter(t.registry)

	res := newResource(cfg)

	exporter := o.exporter
	if exporter == nil {
		var err error
		exporter, err = newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	tp, err := newTracerProvider(cfg, res, logger, t.spans, exporter, o.processors)
	if err != nil {
		return nil, err
	}
	t.tracerProvider = tp

	readers := o.readers
	if cfg.Metrics.OTLPExport {
		exp, err := newMetricExporter(ctx, cfg)
		if err != nil {
			t.setDegraded("otlp metric exporter unavailable", err)
		} else {
			readers = append(readers, sdkmetric.NewPeriodicReader(exp,
				sdkmetric.WithInterval(cfg.Metrics.ExportInterval.Duration()),
			))
		}
	}

	mp, err := newMeterProvider(res, t.registry, readers)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	t.meterProvider = mp

	return t, nil
}

// Tracer returns a tracer for the given instrumentation scope.
//
// A nil Telemetry returns a tracer from the global provider.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	return t.TracerProvider().Tracer(name, opts...)
}

// TracerProvider returns the SDK tracer provider, or the global one for a
// nil Telemetry.
func (t *Telemetry) TracerProvider() oteltrace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return t.tracerProvider
}

// Meter returns a meter for the given instrumentation scope.
//
// A nil Telemetry returns a meter from the global provider.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.MeterProvider().Meter(name, opts...)
}

// MeterProvider returns the SDK meter provider, or the global one for a nil
// Telemetry.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return t.meterProvider
}

// Registry is the Prometheus registry served on /metrics.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

// Lifecycle returns the span start/end counter.
func (t *Telemetry) Lifecycle() *SpanCounter {
	if t == nil {
		return nil
	}
	return t.spans
}

// Shutdown flushes buffered spans and metrics and stops the providers.
//
// Without a deadline on ctx the configured shutdown timeout applies. Spans
// still buffered when it expires are dropped and reported in the returned
// error. Calling Shutdown again is a no-op.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || !t.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	// Use configured timeout if no deadline set
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	t.healthy.Store(false)

	err := errors.Join(errs...)
	if err != nil {
		t.logger.Warn(ctx, "telemetry shutdown incomplete", zap.Error(err))
	} else {
		t.logger.Debug(ctx, "telemetry flushed",
			zap.Int64("spans_started", t.spans.Started()),
			zap.Int64("spans_ended", t.spans.Ended()),
		)
	}
	return err
}

// ForceFlush immediately exports all pending telemetry data.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}

	return errors.Join(errs...)
}

// HealthStatus is the current health of the telemetry pipeline.
type HealthStatus struct {
	Healthy  bool `json:"healthy"`
	Degraded bool `json:"degraded"`
}

// Health returns the current telemetry health status.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Healthy: false, Degraded: true}
	}
	return HealthStatus{
		Healthy:  t.healthy.Load(),
		Degraded: t.degraded.Load(),
	}
}

// setDegraded marks telemetry as degraded due to an error.
func (t *Telemetry) setDegraded(msg string, err error) {
	t.degraded.Store(true)
	t.logger.Warn(context.Background(), msg, zap.Error(err))
}
