package sysmon

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// Instrumentation scopes. Filter directives match these, e.g.
// "info,sysmon.monitor=trace".
const (
	MonitorScope = "sysmon.monitor"
	StatsScope   = "sysmon.stats"
)

// DefaultWindow is how many observations Stats averages over.
const DefaultWindow = 10

// Option configures Run, Monitor and Stats.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	logger         *logging.Logger
	window         int
}

func newOptions(opts []Option) *options {
	o := &options{window: DefaultWindow}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.window <= 0 {
		o.window = DefaultWindow
	}
	return o
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithLogger sets the parent logger. Components log under "sysmon.*".
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWindow sets how many observations Stats keeps.
func WithWindow(n int) Option {
	return func(o *options) { o.window = n }
}
