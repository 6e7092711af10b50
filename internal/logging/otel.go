// internal/logging/otel.go
package logging

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// instrumentationName is the scope the OTEL log bridge reports under.
const instrumentationName = "github.com/fyrsmithlabs/spanhygiene"

// ErrNoLogProvider is returned when OTEL output is enabled without a
// LoggerProvider to write to.
var ErrNoLogProvider = errors.New("output.otel is enabled but no OpenTelemetry log provider was supplied")

// newDualCore creates core with stdout and/or OTEL outputs, gated by the
// filter directive.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider, out zapcore.WriteSyncer) (zapcore.Core, error) {
	filter, err := ParseFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}

	if cfg.Output.OTEL && otelProvider == nil {
		return nil, ErrNoLogProvider
	}

	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stdout && out != nil {
		// The filter core does the level gating, so the base core accepts everything.
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), out, TraceLevel))
	}

	if cfg.Output.OTEL {
		otelCore := otelzap.NewCore(instrumentationName,
			otelzap.WithLoggerProvider(otelProvider),
		)
		cores = append(cores, otelCore)
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return newFilterCore(core, filter), nil
}
