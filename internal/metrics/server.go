// Package metrics serves the Prometheus scrape endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
)

// Config holds metrics endpoint configuration.
type Config struct {
	Addr string `koanf:"addr"`
}

// NewDefaultConfig listens on all interfaces, port 9000.
func NewDefaultConfig() *Config {
	return &Config{Addr: "0.0.0.0:9000"}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid metrics addr %q: %w", c.Addr, err)
	}
	return nil
}

// HealthCheck reports an error when the process should be considered
// unhealthy.
type HealthCheck func() error

// Server exposes GET /metrics and GET /health.
type Server struct {
	echo   *echo.Echo
	logger *logging.Logger
	config *Config
	health HealthCheck
	addr   string
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck makes /health answer 503 when check fails.
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) {
		s.health = check
	}
}

// WithHTTPMetrics records request metrics for the endpoint itself.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.echo.Use(m.MetricsMiddleware())
	}
}

// NewServer creates the metrics server for gatherer.
func NewServer(gatherer prometheus.Gatherer, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if gatherer == nil {
		return nil, fmt.Errorf("gatherer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger = logger.Named("metrics")

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/health", s.handleHealth)

	return s, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.health != nil {
		if err := s.health(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start binds the listener and serves in the background. Bind failures are
// returned here rather than from the serving goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("binding metrics listener on %s: %w", s.config.Addr, err)
	}
	s.echo.Listener = ln
	s.addr = ln.Addr().String()

	s.logger.Info(context.Background(), "serving prometheus metrics",
		zap.String("addr", s.addr),
		zap.String("path", "/metrics"),
	)

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Handler exposes the routes for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug(ctx, "shutting down metrics server")
	return s.echo.Shutdown(ctx)
}
