package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// LevelKey is the span attribute the otel filter reads a span's verbosity
// from. Spans without it count as info.
const LevelKey = attribute.Key("level")

// Level tags a span with a verbosity for the otel filter directive:
//
//	tracer.Start(ctx, "Taking observation", trace.WithAttributes(telemetry.Level(logging.TraceLevel)))
func Level(lvl zapcore.Level) attribute.KeyValue {
	return LevelKey.String(logging.LevelString(lvl))
}

// spanLevel reads the LevelKey attribute, defaulting to info.
func spanLevel(s trace.ReadOnlySpan) zapcore.Level {
	for _, kv := range s.Attributes() {
		if kv.Key != LevelKey {
			continue
		}
		if lvl, err := logging.LevelFromString(kv.Value.AsString()); err == nil {
			return lvl
		}
		break
	}
	return zapcore.InfoLevel
}

// filterProcessor forwards only finished spans that pass the filter
// directive for their instrumentation scope.
type filterProcessor struct {
	next   trace.SpanProcessor
	filter *logging.Filter
}

func newFilterProcessor(next trace.SpanProcessor, f *logging.Filter) trace.SpanProcessor {
	return &filterProcessor{next: next, filter: f}
}

func (p *filterProcessor) OnStart(parent context.Context, s trace.ReadWriteSpan) {
	p.next.OnStart(parent, s)
}

func (p *filterProcessor) OnEnd(s trace.ReadOnlySpan) {
	if !p.filter.Enabled(s.InstrumentationScope().Name, spanLevel(s)) {
		return
	}
	p.next.OnEnd(s)
}

func (p *filterProcessor) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

func (p *filterProcessor) ForceFlush(ctx context.Context) error {
	return p.next.ForceFlush(ctx)
}
