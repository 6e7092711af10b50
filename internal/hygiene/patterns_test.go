package hygiene_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fyrsmithlabs/spanhygiene/internal/hygiene"
	"github.com/fyrsmithlabs/spanhygiene/internal/sysmon"
	"github.com/fyrsmithlabs/spanhygiene/internal/telemetry"
)

var twoCPUs = sysmon.SamplerFunc(func(context.Context) ([]sysmon.CPUStats, error) {
	return []sysmon.CPUStats{
		{Name: "cpu0", Usage: 10, FrequencyMHz: 2000},
		{Name: "cpu1", Usage: 30, FrequencyMHz: 3000},
	}, nil
})

// runWorkload starts sysmon.Run and returns its outbound channel and a stop
// function that cancels, closes anything still in flight and waits.
func runWorkload(t *testing.T, ctx context.Context, opts ...sysmon.Option) (<-chan *sysmon.Observation, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan *sysmon.Observation)
	done := make(chan error, 1)
	go func() {
		done <- sysmon.Run(ctx, 5*time.Millisecond, twoCPUs, out, opts...)
	}()

	return out, func() {
		cancel()
		for obs := range out {
			obs.Close()
		}
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("sysmon.Run did not return")
		}
	}
}

func receive(t *testing.T, out <-chan *sysmon.Observation) *sysmon.Observation {
	t.Helper()
	select {
	case obs, ok := <-out:
		require.True(t, ok, "outbound closed early")
		return obs
	case <-time.After(5 * time.Second):
		t.Fatal("no observation received")
		return nil
	}
}

func countByName[S interface{ Name() string }](spans []S, name string) int {
	n := 0
	for _, s := range spans {
		if s.Name() == name {
			n++
		}
	}
	return n
}

func TestGoodPattern_EverySpanEndsOnce(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	out, stop := runWorkload(t, context.Background(),
		sysmon.WithTracerProvider(tt.TracerProvider()),
		sysmon.WithMeterProvider(tt.MeterProvider()),
	)

	for i := 0; i < 4; i++ {
		obs := receive(t, out)
		err := hygiene.Handle(obs, func(ctx context.Context, obs *sysmon.Observation) error {
			assert.Len(t, obs.CPUs(), 2)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, obs.Closed())
	}
	stop()

	started := tt.Started()
	ended := tt.Spans()
	assert.Equal(t, len(started), len(ended), "every started span ends")
	assert.Equal(t, tt.Lifecycle().Started(), tt.Lifecycle().Ended())
	assert.GreaterOrEqual(t, countByName(ended, "Observation"), 4)

	byID := make(map[string]sdktrace.ReadOnlySpan, len(ended))
	for _, s := range ended {
		byID[s.SpanContext().SpanID().String()] = s
	}
	for _, s := range ended {
		assert.False(t, s.EndTime().Before(s.StartTime()), "span %q ends before it starts", s.Name())
		if !s.Parent().IsValid() {
			continue
		}
		parent, ok := byID[s.Parent().SpanID().String()]
		require.True(t, ok, "parent of %q not recorded", s.Name())
		assert.False(t, s.EndTime().After(parent.EndTime()), "%q outlives its parent %q", s.Name(), parent.Name())
	}

	live, ok := tt.Int64Sum(t, "sysmon.observations_live")
	require.True(t, ok)
	assert.Zero(t, live)
}

func TestHeldOpen_SpansAccumulate(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	out, stop := runWorkload(t, context.Background(),
		sysmon.WithTracerProvider(tt.TracerProvider()),
		sysmon.WithMeterProvider(tt.MeterProvider()),
	)

	holder := hygiene.NewHolder[*sysmon.Observation](0)
	prevOpen, prevLive := 0, int64(0)
	for i := 0; i < 6; i++ {
		holder.Hold(receive(t, out))

		open := countByName(tt.Started(), "Observation") - countByName(tt.Spans(), "Observation")
		assert.GreaterOrEqual(t, open, prevOpen)
		assert.GreaterOrEqual(t, open, holder.Len())
		prevOpen = open

		live, ok := tt.Int64Sum(t, "sysmon.observations_live")
		require.True(t, ok)
		assert.GreaterOrEqual(t, live, prevLive)
		prevLive = live

		assert.GreaterOrEqual(t, tt.Lifecycle().Open(), int64(holder.Len()))
	}
	assert.Zero(t, countByName(tt.Spans(), "Observation"), "no observation span may end while held")

	stop()
	released := holder.ReleaseAll()
	assert.Equal(t, 6, released)
	assert.GreaterOrEqual(t, countByName(tt.Spans(), "Observation"), released)
	assert.Equal(t, tt.Lifecycle().Started(), tt.Lifecycle().Ended())
}

func TestHeldOpen_LimitClosesLate(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	out, stop := runWorkload(t, context.Background(),
		sysmon.WithTracerProvider(tt.TracerProvider()),
		sysmon.WithMeterProvider(tt.MeterProvider()),
	)

	holder := hygiene.NewHolder[*sysmon.Observation](2)
	first := receive(t, out)
	holder.Hold(first)
	holder.Hold(receive(t, out))
	assert.False(t, first.Closed())

	holder.Hold(receive(t, out))
	assert.True(t, first.Closed())
	assert.Equal(t, 2, holder.Len())

	stop()
	holder.ReleaseAll()
}

func TestProgramSpan_SingleSpanForRun(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	ps := hygiene.StartProgramSpan(context.Background(), tt.Tracer("hygiene.program"), "my_forever_span")

	out, stop := runWorkload(t, ps.Context(),
		sysmon.WithTracerProvider(ps.TracerProvider()),
		sysmon.WithMeterProvider(tt.MeterProvider()),
	)
	for i := 0; i < 3; i++ {
		obs := receive(t, out)
		ps.Observe("observation",
			attribute.Int64("observation_id", obs.ID()),
			attribute.Int("cpus", len(obs.CPUs())),
		)
		obs.Close()
	}
	stop()

	assert.Empty(t, tt.Spans(), "nothing ends before the program span")
	ps.End()

	require.Len(t, tt.Started(), 1)
	ended := tt.Spans()
	require.Len(t, ended, 1)
	assert.Equal(t, "my_forever_span", ended[0].Name())
	assert.False(t, ended[0].Parent().IsValid())
	assert.Equal(t, 3, countByName(eventsOf(ended[0]), "observation"))
}

func TestProgramSpan_WorkloadFailureLeavesStatusUnset(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	ps := hygiene.StartProgramSpan(context.Background(), tt.Tracer("hygiene.program"), "my_forever_span")

	var calls atomic.Int32
	flaky := sysmon.SamplerFunc(func(ctx context.Context) ([]sysmon.CPUStats, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("cpu stats unavailable")
		}
		return twoCPUs(ctx)
	})

	ctx, cancel := context.WithCancel(ps.Context())
	out := make(chan *sysmon.Observation)
	done := make(chan error, 1)
	go func() {
		done <- sysmon.Run(ctx, 5*time.Millisecond, flaky, out,
			sysmon.WithTracerProvider(ps.TracerProvider()),
			sysmon.WithMeterProvider(tt.MeterProvider()),
		)
	}()

	obs := receive(t, out)
	assert.Equal(t, ps.Span().SpanContext().TraceID(), obs.Span().SpanContext().TraceID())
	ps.Observe("observation", attribute.Int64("observation_id", obs.ID()))
	obs.Close()

	cancel()
	for obs := range out {
		obs.Close()
	}
	require.NoError(t, <-done)
	ps.End()

	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	ended := tt.Spans()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Empty(t, ended[0].Attributes(), "workload attributes stay off the program span")
	assert.Equal(t, 1, countByName(eventsOf(ended[0]), "observation"))
	assert.Len(t, ended[0].Events(), 1)
}

type namedEvent struct{ name string }

func (e namedEvent) Name() string { return e.name }

func eventsOf(s sdktrace.ReadOnlySpan) []namedEvent {
	var out []namedEvent
	for _, e := range s.Events() {
		out = append(out, namedEvent{e.Name})
	}
	return out
}
