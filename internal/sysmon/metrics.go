package sysmon

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

const meterName = "sysmon"

// Metrics holds the observation instruments.
type Metrics struct {
	logger       *logging.Logger
	made         metric.Int64Counter
	live         metric.Int64UpDownCounter
	cpuUsage     metric.Float64Histogram
	cpuFrequency metric.Float64Histogram
}

// NewMetrics creates the instruments on meter. A failed instrument is
// logged and skipped.
func NewMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Metrics{logger: logger}
	m.init(meter)
	return m
}

func (m *Metrics) init(meter metric.Meter) {
	ctx := context.Background()
	var err error

	m.made, err = meter.Int64Counter(
		"sysmon.observations_made",
		metric.WithDescription("Observations taken since start."),
		metric.WithUnit("{observation}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create observations counter", zap.Error(err))
	}

	m.live, err = meter.Int64UpDownCounter(
		"sysmon.observations_live",
		metric.WithDescription("Observations created and not yet closed. Rising without bound means spans are being held open."),
		metric.WithUnit("{observation}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create live observations gauge", zap.Error(err))
	}

	m.cpuUsage, err = meter.Float64Histogram(
		"sysmon.cpu_usage",
		metric.WithDescription("Per-CPU usage at each observation, labeled by CPU name."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 75, 90, 95, 100),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create cpu usage histogram", zap.Error(err))
	}

	m.cpuFrequency, err = meter.Float64Histogram(
		"sysmon.cpu_frequency_mhz",
		metric.WithDescription("Per-CPU frequency at each observation, labeled by CPU name."),
		metric.WithExplicitBucketBoundaries(800, 1200, 1600, 2000, 2400, 2800, 3200, 3600, 4000, 4800, 5600),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create cpu frequency histogram", zap.Error(err))
	}
}

func (m *Metrics) recordObservation(ctx context.Context, cpus []CPUStats) {
	if m == nil {
		return
	}
	if m.made != nil {
		m.made.Add(ctx, 1)
	}
	if m.live != nil {
		m.live.Add(ctx, 1)
	}
	for _, c := range cpus {
		attrs := metric.WithAttributes(attribute.String("name", c.Name))
		if m.cpuUsage != nil {
			m.cpuUsage.Record(ctx, c.Usage, attrs)
		}
		if m.cpuFrequency != nil {
			m.cpuFrequency.Record(ctx, c.FrequencyMHz, attrs)
		}
	}
}

func (m *Metrics) observationClosed(ctx context.Context) {
	if m == nil || m.live == nil {
		return
	}
	m.live.Add(ctx, -1)
}
