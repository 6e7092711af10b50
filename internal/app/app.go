// Package app wires configuration, logging, telemetry and the metrics
// endpoint for the example programs.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
	"github.com/fyrsmithlabs/spanhygiene/internal/metrics"
	"github.com/fyrsmithlabs/spanhygiene/internal/sysmon"
	"github.com/fyrsmithlabs/spanhygiene/internal/telemetry"
)

// Runtime is everything an example needs once telemetry is installed.
type Runtime struct {
	Config    *Config
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry
	Server    *metrics.Server
	Sampler   sysmon.Sampler
}

// StartOption configures Start.
type StartOption func(*startOptions)

type startOptions struct {
	logger    *logging.Logger
	sampler   sysmon.Sampler
	telemetry []telemetry.Option
}

// WithLogger replaces the logger built from Config.Logging.
func WithLogger(l *logging.Logger) StartOption {
	return func(o *startOptions) { o.logger = l }
}

// WithSampler replaces the host CPU sampler.
func WithSampler(s sysmon.Sampler) StartOption {
	return func(o *startOptions) { o.sampler = s }
}

// WithTelemetryOptions passes options through to telemetry.Init.
func WithTelemetryOptions(opts ...telemetry.Option) StartOption {
	return func(o *startOptions) { o.telemetry = append(o.telemetry, opts...) }
}

// Start builds the logger, installs telemetry, and starts the metrics
// server. On error everything already started is torn down.
func Start(ctx context.Context, cfg *Config, opts ...StartOption) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &startOptions{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.NewLogger(&cfg.Logging, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	tel, err := telemetry.Init(ctx, &cfg.Telemetry, logger, o.telemetry...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tel,
		Sampler:   o.sampler,
	}

	if rt.Sampler == nil {
		rt.Sampler, err = sysmon.NewHostSampler(ctx)
		if err != nil {
			_ = rt.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to read cpu stats: %w", err)
		}
	}

	srv, err := metrics.NewServer(tel.Registry(), logger, &cfg.Metrics,
		metrics.WithHealthCheck(func() error {
			if h := tel.Health(); !h.Healthy {
				return errors.New("telemetry is not healthy")
			}
			return nil
		}),
		metrics.WithHTTPMetrics(metrics.NewHTTPMetrics(tel.Meter("metrics"), logger)),
	)
	if err != nil {
		_ = rt.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}
	if err := srv.Start(); err != nil {
		_ = rt.Shutdown(context.Background())
		return nil, err
	}
	rt.Server = srv

	logger.Info(ctx, "runtime started",
		zap.String("service", cfg.Telemetry.ServiceName),
		zap.Duration("interval", cfg.Monitor.Interval.Duration()),
		zap.Int("hold_limit", cfg.HoldLimit),
	)
	return rt, nil
}

// Interval is the configured observation interval.
func (r *Runtime) Interval() time.Duration {
	return r.Config.Monitor.Interval.Duration()
}

// MonitorOptions returns the sysmon options for this runtime. Tracer and
// meter providers default to the globals Start installed.
func (r *Runtime) MonitorOptions(extra ...sysmon.Option) []sysmon.Option {
	opts := []sysmon.Option{
		sysmon.WithLogger(r.Logger),
		sysmon.WithWindow(r.Config.Monitor.Window),
	}
	return append(opts, extra...)
}

// Shutdown stops the metrics server and flushes telemetry. Without a
// deadline on ctx each step is bounded by the configured shutdown timeout,
// and the flush runs even when stopping the server fails.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	if r.Server != nil {
		sctx := ctx
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(ctx, r.Config.Telemetry.Shutdown.Timeout.Duration())
			defer cancel()
		}
		if err := r.Server.Shutdown(sctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if err := r.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = r.Logger.Sync() // Best-effort sync on shutdown
	return errors.Join(errs...)
}

// RunFunc is the body of an example program.
type RunFunc func(ctx context.Context, rt *Runtime) error

// Execute loads configuration for name, starts the runtime, calls run and
// shuts down. ctx cancellation is the normal way for run to return.
func Execute(ctx context.Context, name string, run RunFunc, opts ...StartOption) error {
	cfg, err := LoadConfig(name, os.Getenv(ConfigPathEnv))
	if err != nil {
		return err
	}

	rt, err := Start(ctx, cfg, opts...)
	if err != nil {
		return err
	}

	runErr := run(ctx, rt)
	if runErr != nil {
		rt.Logger.Error(ctx, "run failed", zap.Error(runErr))
	}
	rt.Logger.Info(ctx, "shutting down")

	return errors.Join(runErr, rt.Shutdown(context.Background()))
}

// Main runs an example until SIGINT or SIGTERM and exits non-zero on error.
func Main(name string, run RunFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx, name, run); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		stop()
		os.Exit(1)
	}
}
