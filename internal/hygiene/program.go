package hygiene

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
)

// ProgramSpan is a single span covering the whole run.
type ProgramSpan struct {
	ctx    context.Context
	span   trace.Span
	events atomic.Int64
	ended  atomic.Bool
}

// StartProgramSpan opens the program span on tracer.
func StartProgramSpan(ctx context.Context, tracer trace.Tracer, name string) *ProgramSpan {
	ctx, span := tracer.Start(ctx, name, trace.WithNewRoot())
	return &ProgramSpan{ctx: ctx, span: span}
}

// Context carries the program span.
func (p *ProgramSpan) Context() context.Context {
	return p.ctx
}

// Span returns the program span.
func (p *ProgramSpan) Span() trace.Span {
	return p.span
}

// TracerProvider returns a provider whose tracers never create spans.
// Start hands back a non-recording span carrying the program span's
// context, so work run under it logs with the program trace_id but cannot
// end, rename, annotate or fail the program span.
func (p *ProgramSpan) TracerProvider() trace.TracerProvider {
	return &borrowingProvider{program: p}
}

// Observe attaches an event to the program span.
func (p *ProgramSpan) Observe(name string, attrs ...attribute.KeyValue) {
	p.span.AddEvent(name, trace.WithAttributes(attrs...))
	p.events.Add(1)
}

// Events returns the number of events attached so far.
func (p *ProgramSpan) Events() int64 {
	return p.events.Load()
}

// End ends the program span. Later calls do nothing.
func (p *ProgramSpan) End() {
	if p.ended.CompareAndSwap(false, true) {
		p.span.End()
	}
}

type borrowingProvider struct {
	embedded.TracerProvider
	program *ProgramSpan
}

func (bp *borrowingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &borrowingTracer{program: bp.program}
}

type borrowingTracer struct {
	embedded.Tracer
	program *ProgramSpan
}

func (bt *borrowingTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx = trace.ContextWithSpanContext(ctx, bt.program.span.SpanContext())
	return ctx, trace.SpanFromContext(ctx)
}
