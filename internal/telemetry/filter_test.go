package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

func TestSpanLevel(t *testing.T) {
	tests := []struct {
		name  string
		attrs []attribute.KeyValue
		want  zapcore.Level
	}{
		{"no attribute", nil, zapcore.InfoLevel},
		{"trace", []attribute.KeyValue{Level(logging.TraceLevel)}, logging.TraceLevel},
		{"error", []attribute.KeyValue{Level(zapcore.ErrorLevel)}, zapcore.ErrorLevel},
		{"garbage", []attribute.KeyValue{LevelKey.String("loud")}, zapcore.InfoLevel},
	}

	recorder := tracetest.NewSpanRecorder()
	tracer := trace.NewTracerProvider(trace.WithSpanProcessor(recorder)).Tracer("test")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, span := tracer.Start(context.Background(), tt.name, oteltrace.WithAttributes(tt.attrs...))
			span.End()

			ended := recorder.Ended()
			require.NotEmpty(t, ended)
			assert.Equal(t, tt.want, spanLevel(ended[len(ended)-1]))
		})
	}
}

func TestFilterProcessor_ForwardsStartAndGatesEnd(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	p := newFilterProcessor(recorder, logging.MustParseFilter("off,keep=info"))
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(p))

	_, kept := tp.Tracer("keep").Start(context.Background(), "kept")
	kept.End()
	_, dropped := tp.Tracer("drop").Start(context.Background(), "dropped")
	dropped.End()

	assert.Len(t, recorder.Started(), 2)
	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "kept", ended[0].Name())

	require.NoError(t, tp.Shutdown(context.Background()))
}
