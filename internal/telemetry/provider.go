package telemetry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// newResource creates a resource describing the service.
func newResource(cfg *Config) *resource.Resource {
	// Standalone resource: resource.Default() carries a different semconv
	// schema URL and the merge would fail.
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
}

// newSpanExporter builds the exporter named by cfg.Exporter. It returns a
// nil exporter for ExporterNone.
func newSpanExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterNone:
		return nil, nil
	case ExporterConsole:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating console exporter: %w", err)
		}
		return exp, nil
	}

	ep, err := cfg.endpoint()
	if err != nil {
		return nil, err
	}

	var exporter trace.SpanExporter
	switch cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(ep.host),
		}
		if ep.insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			})))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(ep.host),
		}
		if ep.path != "" {
			opts = append(opts, otlptracehttp.WithURLPath(ep.path+"/v1/traces"))
		}
		if ep.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			}))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return exporter, nil
}

// newSampler maps the sampling rate to a parent-based sampler.
func newSampler(rate float64) trace.Sampler {
	var sampler trace.Sampler
	switch {
	case rate >= 1.0:
		sampler = trace.AlwaysSample()
	case rate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(rate)
	}
	return trace.ParentBased(sampler)
}

// newTracerProvider assembles the span pipeline:
//
//	lifecycle counter -> console log -> [otel filter -> batcher -> exporter] -> extra processors
func newTracerProvider(cfg *Config, res *resource.Resource, logger *logging.Logger,
	spans *SpanCounter, exporter trace.SpanExporter, extra []trace.SpanProcessor,
) (*trace.TracerProvider, error) {
	filter, err := logging.ParseFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid otel filter: %w", err)
	}

	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(newSampler(cfg.Sampling.Rate)),
		trace.WithSpanProcessor(spans),
		trace.WithSpanProcessor(newLogProcessor(logger)),
	}
	if exporter != nil {
		opts = append(opts, trace.WithSpanProcessor(
			newFilterProcessor(trace.NewBatchSpanProcessor(exporter), filter),
		))
	}
	for _, p := range extra {
		opts = append(opts, trace.WithSpanProcessor(p))
	}

	return trace.NewTracerProvider(opts...), nil
}

// newMeterProvider creates a MeterProvider whose Prometheus reader registers
// on reg. Additional readers (OTLP push, test readers) are appended.
func newMeterProvider(res *resource.Resource, reg *prometheus.Registry, readers []sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	promReader, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus reader: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promReader),
	}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// newMetricExporter creates the OTLP metric exporter for the optional push
// reader.
func newMetricExporter(ctx context.Context, cfg *Config) (sdkmetric.Exporter, error) {
	ep, err := cfg.endpoint()
	if err != nil {
		return nil, err
	}

	// Cumulative temporality matches what the Prometheus reader reports, so
	// both paths agree on counter values.
	cumulativeSelector := func(sdkmetric.InstrumentKind) metricdata.Temporality {
		return metricdata.CumulativeTemporality
	}

	var exporter sdkmetric.Exporter
	switch cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(ep.host),
			otlpmetricgrpc.WithTemporalitySelector(cumulativeSelector),
		}
		if ep.insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			})))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	default:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(ep.host),
			otlpmetrichttp.WithTemporalitySelector(cumulativeSelector),
		}
		if ep.path != "" {
			opts = append(opts, otlpmetrichttp.WithURLPath(ep.path+"/v1/metrics"))
		}
		if ep.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			}))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return exporter, nil
}

// registerRuntimeCollectors adds Go runtime and process metrics, tolerating
// a registry that already has them.
func registerRuntimeCollectors(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
