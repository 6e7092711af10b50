// Package telemetry bootstraps OpenTelemetry tracing and metrics for
// spanhygiene.
package telemetry

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/spanhygiene/internal/config"
	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// Span exporter kinds, as in OTEL_TRACES_EXPORTER.
const (
	ExporterOTLP    = "otlp"
	ExporterConsole = "console"
	ExporterNone    = "none"
)

// OTLP protocols, as in OTEL_EXPORTER_OTLP_PROTOCOL.
const (
	ProtocolHTTP = "http/protobuf"
	ProtocolGRPC = "grpc"
)

// Config holds telemetry configuration.
type Config struct {
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	Exporter       string `koanf:"exporter"`
	// Endpoint is a URL (http://localhost:4318) or host:port. An http://
	// URL implies an insecure connection.
	Endpoint      string `koanf:"endpoint"`
	Protocol      string `koanf:"protocol"`
	Insecure      bool   `koanf:"insecure"`
	TLSSkipVerify bool   `koanf:"tls_skip_verify"`
	// Filter selects which finished spans reach the exporter, using the
	// logging filter grammar against the tracer scope name.
	Filter   string         `koanf:"filter"`
	Sampling SamplingConfig `koanf:"sampling"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Shutdown ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"` // 0.0-1.0, default 1.0
}

// MetricsConfig controls the optional OTLP metric push. The Prometheus
// reader is always installed.
type MetricsConfig struct {
	OTLPExport     bool            `koanf:"otlp_export"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns defaults pointing at a collector on localhost.
func NewDefaultConfig() *Config {
	return &Config{
		ServiceName:    "spanhygiene",
		ServiceVersion: "0.1.0",
		Exporter:       ExporterOTLP,
		Endpoint:       "http://localhost:4318",
		Protocol:       ProtocolHTTP,
		Filter:         "info",
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Metrics: MetricsConfig{
			OTLPExport:     false,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}

	switch c.Exporter {
	case ExporterOTLP, ExporterConsole, ExporterNone:
	default:
		return fmt.Errorf("exporter must be %q, %q or %q, got %q", ExporterOTLP, ExporterConsole, ExporterNone, c.Exporter)
	}

	switch c.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolHTTP, ProtocolGRPC, c.Protocol)
	}

	if c.Exporter == ExporterOTLP || c.Metrics.OTLPExport {
		if _, err := c.endpoint(); err != nil {
			return err
		}
	}

	if _, err := logging.ParseFilter(c.Filter); err != nil {
		return fmt.Errorf("invalid otel filter: %w", err)
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}

	if c.Metrics.OTLPExport && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when otlp export is enabled")
	}

	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}

	return nil
}

// endpoint is a collector address split the way the OTLP exporters take it.
type endpoint struct {
	host     string // host[:port]
	path     string // base path, no trailing slash
	insecure bool
}

func (c *Config) endpoint() (endpoint, error) {
	raw := strings.TrimSpace(c.Endpoint)
	if raw == "" {
		return endpoint{}, fmt.Errorf("endpoint is required for otlp export")
	}

	if !strings.Contains(raw, "://") {
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return endpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
		}
		return endpoint{host: raw, insecure: c.Insecure}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", raw)
	}

	e := endpoint{host: u.Host, path: strings.TrimSuffix(u.Path, "/")}
	switch u.Scheme {
	case "http":
		e.insecure = true
	case "https":
		e.insecure = c.Insecure
	default:
		return endpoint{}, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
	return e, nil
}
