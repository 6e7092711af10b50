package telemetry

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

func TestSpanCounter_OpenSpansAccumulate(t *testing.T) {
	tt := NewTestTelemetry()
	tracer := tt.Tracer("leaky")

	var spans []oteltrace.Span
	for i := 0; i < 3; i++ {
		_, span := tracer.Start(context.Background(), fmt.Sprintf("held-%d", i))
		spans = append(spans, span)
		assert.Equal(t, int64(i+1), tt.Lifecycle().Open())
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(tt.Lifecycle().open.WithLabelValues("leaky")))
	assert.Empty(t, tt.Spans())

	for _, span := range spans {
		span.End()
	}
	assert.Equal(t, int64(0), tt.Lifecycle().Open())
	assert.Equal(t, int64(3), tt.Lifecycle().Ended())
}

func TestSpanCounter_Scrape(t *testing.T) {
	tt := NewTestTelemetry()

	const n = 7
	for i := 0; i < n; i++ {
		_, span := tt.Tracer("scraped").Start(context.Background(), "op")
		span.End()
	}
	_, open := tt.Tracer("scraped").Start(context.Background(), "still open")
	defer open.End()

	scrape := tt.Scrape(t)

	ended, ok := ScrapeValue(scrape, "tracing_spans_ended_total")
	require.True(t, ok, scrape)
	assert.Equal(t, float64(n), ended)

	started, ok := ScrapeValue(scrape, "tracing_spans_started_total")
	require.True(t, ok)
	assert.Equal(t, float64(n+1), started)

	gauge, ok := ScrapeValue(scrape, "tracing_spans_open")
	require.True(t, ok)
	assert.Equal(t, 1.0, gauge)
}

func TestCounterScrape_ReportsExactIncrements(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	counter, err := tt.Meter("scrape.test").Int64Counter("scrape.events")
	require.NoError(t, err)

	const n = 11
	for i := 0; i < n; i++ {
		counter.Add(ctx, 1)
	}

	got, ok := tt.Int64Sum(t, "scrape.events")
	require.True(t, ok)
	assert.Equal(t, int64(n), got)

	scrape := tt.Scrape(t)
	value, ok := ScrapeValue(scrape, "scrape_events_total")
	require.True(t, ok, scrape)
	assert.Equal(t, float64(n), value)
}

func TestScrapeValue(t *testing.T) {
	scrape := `# HELP x_total help
# TYPE x_total counter
x_total{scope="a"} 2
x_total{scope="b"} 3
x_total_other 100
x 9
`
	v, ok := ScrapeValue(scrape, "x_total")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	v, ok = ScrapeValue(scrape, "x")
	require.True(t, ok)
	assert.Equal(t, 9.0, v)

	_, ok = ScrapeValue(scrape, "missing")
	assert.False(t, ok)

	_, ok = ScrapeValue("x_total{scope=\"a\" 2\n", "x_total")
	assert.False(t, ok, "malformed scrape")
}

func TestLogProcessor_PerScope(t *testing.T) {
	tl := logging.NewTestLoggerWithFilter("info,sysmon=trace")
	tt := NewTestTelemetryWithLogger(tl.Logger)

	_, span := tt.Tracer("sysmon.monitor").Start(context.Background(), "Taking observation")
	span.End()
	_, quiet := tt.Tracer("app").Start(context.Background(), "quiet")
	quiet.End()

	tl.AssertLogged(t, logging.TraceLevel, "span opened")
	tl.AssertLogged(t, zapcore.DebugLevel, "span closed")
	tl.AssertField(t, "span opened", "span", "Taking observation")

	for _, entry := range tl.All() {
		assert.NotEqual(t, "quiet", entry.ContextMap()["span"])
	}
}
