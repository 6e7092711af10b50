package hygiene

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithSpan runs fn inside a span named name. The span ends exactly once
// when fn returns. An error is recorded and sets the span status; a panic
// sets the status, ends the span and is re-raised.
func WithSpan(ctx context.Context, tracer trace.Tracer, name string, fn func(ctx context.Context) error, opts ...trace.SpanStartOption) error {
	_, err := WithSpanResult(ctx, tracer, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// WithSpanResult is WithSpan for work that produces a value.
func WithSpanResult[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(ctx context.Context) (T, error), opts ...trace.SpanStartOption) (result T, err error) {
	ctx, span := tracer.Start(ctx, name, opts...)
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
			span.End()
			panic(r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return fn(ctx)
}

// Scoped is a unit of work that owns an open span. Context carries that
// span; Close ends it and must be safe to call more than once.
type Scoped interface {
	Context() context.Context
	Close()
}

// Handle runs fn in item's span context and closes item afterwards,
// including when fn fails or panics.
func Handle[T Scoped](item T, fn func(ctx context.Context, item T) error) error {
	defer item.Close()
	return fn(item.Context(), item)
}
