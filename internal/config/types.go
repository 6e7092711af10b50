package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that koanf fills from strings such as "5s"
// or "250ms", whether they come from YAML or SPANHYGIENE_* variables.
// Negative values are rejected; zero is left for the owning section's
// Validate to judge.
type Duration time.Duration

// UnmarshalText parses s with time.ParseDuration.
func (d *Duration) UnmarshalText(s []byte) error {
	v, err := time.ParseDuration(string(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration the way it is written in config, which
// also makes it a JSON string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Duration converts back for timers and contexts.
func (d Duration) Duration() time.Duration { return time.Duration(d) }
