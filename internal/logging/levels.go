// internal/logging/levels.go
package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel is a custom level below Debug for ultra-verbose logging.
// Value: -2 (Debug is -1, Info is 0)
//
// Use for:
//   - Span open/close notifications
//   - Per-observation sampling details
//   - Almost always filtered in production
const TraceLevel = zapcore.Level(-2)

// OffLevel disables a component entirely. Nothing is ever logged at it.
const OffLevel = zapcore.FatalLevel + 1

// LevelFromString parses a string into a zapcore.Level, supporting "trace"
// and "off".
func LevelFromString(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "trace":
		return TraceLevel, nil
	case "off":
		return OffLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// LevelString renders a level the way LevelFromString accepts it.
func LevelString(l zapcore.Level) string {
	switch l {
	case TraceLevel:
		return "trace"
	case OffLevel:
		return "off"
	}
	return l.String()
}

// levelEncoder prints TraceLevel as "trace" instead of "Level(-2)".
func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}
