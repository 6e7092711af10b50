// internal/logging/filter.go
package logging

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Filter is a parsed filter directive selecting a minimum level per
// component.
//
// A directive is a comma separated list of entries. An entry is either a
// bare level, which sets the default, or component=level:
//
//	info
//	warn,sysmon=debug,sysmon.monitor=trace
//	info,hygiene=off
//
// Components are dotted names (zap logger names, tracer scope names). A
// component matches itself and every name below it; the longest match wins.
type Filter struct {
	def        zapcore.Level
	directives []directive // sorted longest target first
	min        zapcore.Level
	raw        string
}

type directive struct {
	target string
	level  zapcore.Level
}

// ParseFilter parses a filter directive. An empty directive means "info".
func ParseFilter(s string) (*Filter, error) {
	f := &Filter{def: zapcore.InfoLevel, raw: s}

	byTarget := make(map[string]zapcore.Level)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		target, levelText, hasTarget := strings.Cut(part, "=")
		if !hasTarget {
			lvl, err := LevelFromString(part)
			if err != nil {
				return nil, fmt.Errorf("invalid level %q in filter directive", part)
			}
			f.def = lvl
			continue
		}

		target = strings.TrimSpace(target)
		if target == "" {
			return nil, fmt.Errorf("empty component in filter directive entry %q", part)
		}
		if strings.Contains(levelText, "=") {
			return nil, fmt.Errorf("malformed filter directive entry %q", part)
		}
		lvl, err := LevelFromString(levelText)
		if err != nil {
			return nil, fmt.Errorf("invalid level %q for component %q", levelText, target)
		}
		byTarget[target] = lvl
	}

	for target, lvl := range byTarget {
		f.directives = append(f.directives, directive{target: target, level: lvl})
	}
	sort.Slice(f.directives, func(i, j int) bool {
		if len(f.directives[i].target) != len(f.directives[j].target) {
			return len(f.directives[i].target) > len(f.directives[j].target)
		}
		return f.directives[i].target < f.directives[j].target
	})

	f.min = f.def
	for _, d := range f.directives {
		if d.level < f.min {
			f.min = d.level
		}
	}
	return f, nil
}

// MustParseFilter is like ParseFilter but panics on error. For tests and
// constants.
func MustParseFilter(s string) *Filter {
	f, err := ParseFilter(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Level returns the minimum level enabled for component.
func (f *Filter) Level(component string) zapcore.Level {
	for _, d := range f.directives {
		if component == d.target || strings.HasPrefix(component, d.target+".") {
			return d.level
		}
	}
	return f.def
}

// Enabled reports whether an entry at lvl from component passes the filter.
func (f *Filter) Enabled(component string, lvl zapcore.Level) bool {
	threshold := f.Level(component)
	return threshold != OffLevel && lvl >= threshold
}

// MinLevel is the lowest level any component may log at.
func (f *Filter) MinLevel() zapcore.Level {
	return f.min
}

// String returns the directive the filter was parsed from.
func (f *Filter) String() string {
	return f.raw
}

// filterCore gates entries by logger name against a Filter.
type filterCore struct {
	zapcore.Core
	filter *Filter
}

func newFilterCore(core zapcore.Core, f *Filter) zapcore.Core {
	return &filterCore{Core: core, filter: f}
}

func (c *filterCore) Enabled(lvl zapcore.Level) bool {
	if c.filter.MinLevel() == OffLevel || lvl < c.filter.MinLevel() {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *filterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.filter.Enabled(e.LoggerName, e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves filtering.
func (c *filterCore) With(fields []zapcore.Field) zapcore.Core {
	return &filterCore{
		Core:   c.Core.With(fields),
		filter: c.filter,
	}
}
