// Package telemetry provides OpenTelemetry instrumentation for spanhygiene.
//
// # Overview
//
// Init installs a process-wide tracer provider and meter provider. Finished
// spans fan out to:
//
//   - a lifecycle counter exposing tracing_spans_started_total,
//     tracing_spans_ended_total and tracing_spans_open on the Prometheus
//     registry, so spans that never end are visible on /metrics
//   - the console logger, where span opens log at trace and closes at debug
//     under a logger named after the tracer scope
//   - the exporter (OTLP over HTTP or gRPC, or stdout), batched and gated by
//     the otel filter directive
//
// Metrics recorded through the meter provider are read by the OpenTelemetry
// Prometheus exporter into the same registry, and optionally pushed over
// OTLP.
//
// # Usage
//
//	cfg := telemetry.NewDefaultConfig()
//	tel, err := telemetry.Init(ctx, cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := otel.Tracer("sysmon.monitor").Start(ctx, "Observation")
//	defer span.End()
//
// Init succeeds once per process. A second call returns
// ErrAlreadyInitialized. New builds the same providers without installing
// them.
//
// # Configuration
//
//	telemetry:
//	  exporter: otlp            # otlp, console, none
//	  protocol: http/protobuf   # or grpc
//	  endpoint: http://localhost:4318
//	  filter: info,sysmon.stats=warn
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    otlp_export: false
//	    export_interval: 15s
//	  shutdown:
//	    timeout: 5s
//
// The filter uses the logging filter grammar. A span's component is its
// tracer scope name and its level is the Level attribute, info by default.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
//	v, _ := telemetry.ScrapeValue(tt.Scrape(t), "tracing_spans_ended_total")
package telemetry
