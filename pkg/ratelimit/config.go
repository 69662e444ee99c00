package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Config is a fixed-window rate limit policy
type Config struct {
	// Name identifies the policy in metrics and logs
	Name string `yaml:"name"`
	// Window is the length of the accounting window
	Window time.Duration `yaml:"window"`
	// Limit is the number of requests admitted per window
	Limit int `yaml:"limit"`
}

// Validate checks the policy is usable
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("rate limit %q: window must be positive", c.Name)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("rate limit %q: limit must be positive", c.Name)
	}
	return nil
}

// Strict is meant for credential-sensitive endpoints such as login
func Strict() Config {
	return Config{Name: "strict", Window: time.Minute, Limit: 5}
}

// Standard is meant for writes
func Standard() Config {
	return Config{Name: "standard", Window: time.Minute, Limit: 30}
}

// Lenient is meant for reads
func Lenient() Config {
	return Config{Name: "lenient", Window: time.Minute, Limit: 100}
}

// Presets is a named set of policies
type Presets struct {
	Strict   Config `yaml:"strict"`
	Standard Config `yaml:"standard"`
	Lenient  Config `yaml:"lenient"`
}

// DefaultPresets returns the built-in policies
func DefaultPresets() Presets {
	return Presets{
		Strict:   Strict(),
		Standard: Standard(),
		Lenient:  Lenient(),
	}
}

// Lookup returns the preset with the given name
func (p Presets) Lookup(name string) (Config, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "strict":
		return p.Strict, true
	case "standard":
		return p.Standard, true
	case "lenient":
		return p.Lenient, true
	}
	return Config{}, false
}

// Validate checks every preset and the ordering between them
func (p Presets) Validate() error {
	for _, c := range []Config{p.Strict, p.Standard, p.Lenient} {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if !(p.Strict.Limit < p.Standard.Limit && p.Standard.Limit < p.Lenient.Limit) {
		return fmt.Errorf("rate limit presets must satisfy strict.limit < standard.limit < lenient.limit (got %d, %d, %d)",
			p.Strict.Limit, p.Standard.Limit, p.Lenient.Limit)
	}
	if p.Strict.Window > p.Standard.Window {
		return fmt.Errorf("rate limit presets must satisfy strict.window <= standard.window (got %s, %s)",
			p.Strict.Window, p.Standard.Window)
	}
	return nil
}

// Preset resolves a built-in preset by name
func Preset(name string) (Config, bool) {
	return DefaultPresets().Lookup(name)
}
