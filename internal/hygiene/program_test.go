package hygiene

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func TestProgramSpan_BorrowedTracerCreatesNoSpans(t *testing.T) {
	rec, tracer := newRecorder()
	ps := StartProgramSpan(context.Background(), tracer, "program")

	borrowed := ps.TracerProvider().Tracer("sysmon.monitor")
	for i := 0; i < 5; i++ {
		ctx, span := borrowed.Start(ps.Context(), "Observation")
		assert.Equal(t, ps.Span().SpanContext(), trace.SpanFromContext(ctx).SpanContext())
		assert.False(t, span.IsRecording())
		span.SetName("renamed")
		span.SetAttributes(attribute.Int("cpus", 4))
		span.AddEvent("inner")
		span.RecordError(errors.New("sampler failed"))
		span.SetStatus(codes.Error, "observation failed")
		span.End()
		ps.Observe("observation", attribute.Int("observation_id", i))
	}

	assert.Empty(t, rec.Ended())
	assert.Len(t, rec.Started(), 1)

	ps.End()
	ps.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "program", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Empty(t, ended[0].Attributes())
	assert.Len(t, ended[0].Events(), 5)
	for _, e := range ended[0].Events() {
		assert.Equal(t, "observation", e.Name)
	}
	assert.Equal(t, int64(5), ps.Events())
}

func TestProgramSpan_IsRoot(t *testing.T) {
	rec, tracer := newRecorder()

	parentCtx, parent := tracer.Start(context.Background(), "outer")
	ps := StartProgramSpan(parentCtx, tracer, "program")
	ps.End()
	parent.End()

	for _, s := range rec.Ended() {
		if s.Name() == "program" {
			assert.False(t, s.Parent().IsValid())
		}
	}
}
