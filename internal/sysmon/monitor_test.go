package sysmon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
	"github.com/fyrsmithlabs/spanhygiene/internal/telemetry"
)

func fixedSampler(cpus ...CPUStats) SamplerFunc {
	return func(context.Context) ([]CPUStats, error) {
		return cpus, nil
	}
}

func TestNewMonitor_Validation(t *testing.T) {
	ch := make(chan *Observation)

	_, err := NewMonitor(nil, time.Second, ch)
	assert.ErrorContains(t, err, "sampler cannot be nil")

	_, err = NewMonitor(fixedSampler(), 0, ch)
	assert.ErrorContains(t, err, "interval must be positive")

	_, err = NewMonitor(fixedSampler(), time.Second, nil)
	assert.ErrorContains(t, err, "outbound channel cannot be nil")
}

func TestMonitor_ObservesImmediatelyWithRootSpans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	ch := make(chan *Observation, 8)

	m, err := NewMonitor(fixedSampler(CPUStats{Name: "cpu0", Usage: 50, FrequencyMHz: 2400}), time.Hour, ch,
		WithTracerProvider(tt.TracerProvider()),
		WithMeterProvider(tt.MeterProvider()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	var obs *Observation
	select {
	case obs = <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("first observation should not wait for the interval")
	}
	cancel()
	require.NoError(t, <-done)

	_, open := <-ch
	assert.False(t, open, "Run closes outbound")

	assert.Equal(t, int64(0), obs.ID())
	assert.Len(t, obs.CPUs(), 1)
	assert.True(t, obs.Span().IsRecording())

	tt.AssertSpanExists(t, "Taking observation")
	assert.Nil(t, tt.SpanByName("Observation"), "observation span stays open until Close")

	obs.Close()
	tt.AssertSpanExists(t, "Observation")
	tt.AssertSpanAttribute(t, "Observation", "observation_id", int64(0))
	tt.AssertSpanAttribute(t, "Taking observation", "cpus", int64(1))

	root := tt.SpanByName("Observation")
	child := tt.SpanByName("Taking observation")
	assert.False(t, root.Parent().IsValid())
	assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, MonitorScope, root.InstrumentationScope().Name)
}

func TestMonitor_SamplerFailure(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	tl := logging.NewTestLogger()
	ch := make(chan *Observation, 8)

	var calls atomic.Int32
	sampler := SamplerFunc(func(context.Context) ([]CPUStats, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("no /proc")
		}
		return []CPUStats{{Name: "cpu0"}}, nil
	})

	m, err := NewMonitor(sampler, 5*time.Millisecond, ch,
		WithTracerProvider(tt.TracerProvider()),
		WithMeterProvider(tt.MeterProvider()),
		WithLogger(tl.Logger),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	obs := <-ch
	cancel()
	require.NoError(t, <-done)
	for extra := range ch {
		extra.Close()
	}

	// The failed attempt did not consume an id.
	assert.Equal(t, int64(0), obs.ID())
	obs.Close()

	tl.AssertLogged(t, zapcore.WarnLevel, "observation failed")
	failed := tt.SpansByName("Taking observation")[0]
	assert.Equal(t, codes.Error, failed.Status().Code)

	made, ok := tt.Int64Sum(t, "sysmon.observations_made")
	require.True(t, ok)
	assert.GreaterOrEqual(t, made, int64(1))
}
