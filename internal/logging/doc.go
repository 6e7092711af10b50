// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug) and an Off level
//   - Per-component filter directives ("info,sysmon.monitor=trace")
//   - Dual output (stdout + OpenTelemetry log bridge)
//   - Automatic trace_id/span_id injection from the context
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	cfg.Filter = "info,sysmon=debug"
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx, span := tracer.Start(ctx, "Observation")
//	defer span.End()
//	logger.Named("sysmon").Info(ctx, "finished cpu stats", zap.Float64("average_usage", u))
//
// # Filter Directives
//
// A directive is a comma separated list. A bare level sets the default, and
// component=level overrides it for a dotted logger name and everything
// below it. The longest matching component wins:
//
//	warn,sysmon=debug,sysmon.monitor=trace
//
// The same grammar gates which spans reach the OTLP exporter (see
// internal/telemetry), where the component is the tracer scope name.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//
// Logger is safe for concurrent use.
package logging
