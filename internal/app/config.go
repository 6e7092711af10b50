package app

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/spanhygiene/internal/config"
	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
	"github.com/fyrsmithlabs/spanhygiene/internal/metrics"
	"github.com/fyrsmithlabs/spanhygiene/internal/sysmon"
	"github.com/fyrsmithlabs/spanhygiene/internal/telemetry"
)

// ConfigPathEnv names the optional YAML config file.
const ConfigPathEnv = "SPANHYGIENE_CONFIG"

// Envs maps the environment variables the examples read to config keys.
var Envs = config.EnvMap{
	"SPANHYGIENE_LOG":              "logging.filter",
	"SPANHYGIENE_LOG_FORMAT":       "logging.format",
	"SPANHYGIENE_OTEL_LOG":         "telemetry.filter",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "telemetry.endpoint",
	"OTEL_EXPORTER_OTLP_PROTOCOL":  "telemetry.protocol",
	"OTEL_TRACES_EXPORTER":         "telemetry.exporter",
	"OTEL_SERVICE_NAME":            "telemetry.service_name",
	"OTEL_TRACES_SAMPLER_ARG":      "telemetry.sampling.rate",
	"SPANHYGIENE_SHUTDOWN_TIMEOUT": "telemetry.shutdown.timeout",
	"SPANHYGIENE_METRICS_OTLP":     "telemetry.metrics.otlp_export",
	"SPANHYGIENE_METRICS_ADDR":     "metrics.addr",
	"SPANHYGIENE_INTERVAL":         "monitor.interval",
	"SPANHYGIENE_WINDOW":           "monitor.window",
	"SPANHYGIENE_HOLD_LIMIT":       "hold_limit",
}

// Config is the configuration shared by the example programs.
type Config struct {
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
	Metrics   metrics.Config   `koanf:"metrics"`
	Monitor   MonitorConfig    `koanf:"monitor"`
	// HoldLimit caps how many observations the held-open example keeps.
	// Zero keeps all of them.
	HoldLimit int `koanf:"hold_limit"`
}

// MonitorConfig controls the CPU monitor.
type MonitorConfig struct {
	Interval config.Duration `koanf:"interval"`
	Window   int             `koanf:"window"`
}

// NewDefaultConfig returns defaults for the program called name, which is
// also the default service name.
func NewDefaultConfig(name string) *Config {
	tcfg := telemetry.NewDefaultConfig()
	tcfg.ServiceName = name
	return &Config{
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *tcfg,
		Metrics:   *metrics.NewDefaultConfig(),
		Monitor: MonitorConfig{
			Interval: config.Duration(5 * time.Second),
			Window:   sysmon.DefaultWindow,
		},
	}
}

// LoadConfig reads defaults, then the YAML file at path (if any), then the
// environment.
func LoadConfig(name, path string) (*Config, error) {
	cfg := NewDefaultConfig(name)
	if err := config.Load(path, Envs, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	// Start builds the logger before telemetry and has no log provider.
	if c.Logging.Output.OTEL {
		return fmt.Errorf("logging: %w", logging.ErrNoLogProvider)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if c.Monitor.Interval.Duration() <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if c.Monitor.Window <= 0 {
		return fmt.Errorf("monitor window must be positive, got %d", c.Monitor.Window)
	}
	if c.HoldLimit < 0 {
		return fmt.Errorf("hold_limit cannot be negative, got %d", c.HoldLimit)
	}
	return nil
}
