package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/dernek/pkg/ratelimit"
)

// Policy is the optional YAML overlay for admission policy.
//
//	rate_limits:
//	  strict:
//	    window: 1m
//	    limit: 5
//	  lenient:
//	    limit: 200
//	trust_proxy: true
//	cors_origins:
//	  - https://panel.example.org
//
// Only the fields present in the file override the environment.
type Policy struct {
	RateLimits  map[string]PresetOverride `yaml:"rate_limits"`
	TrustProxy  *bool                     `yaml:"trust_proxy"`
	CORSOrigins []string                  `yaml:"cors_origins"`
}

// PresetOverride changes one rate limit preset
type PresetOverride struct {
	Window *time.Duration `yaml:"window"`
	Limit  *int           `yaml:"limit"`
}

// LoadPolicyFile reads and parses a policy file. Unknown keys are rejected.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses a YAML policy document
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return &policy, nil
}

// Apply overlays the policy onto cfg
func (p *Policy) Apply(cfg *Config) error {
	for name, override := range p.RateLimits {
		preset, err := presetField(&cfg.RateLimit.Presets, name)
		if err != nil {
			return err
		}
		if override.Window != nil {
			preset.Window = *override.Window
		}
		if override.Limit != nil {
			preset.Limit = *override.Limit
		}
	}
	if p.TrustProxy != nil {
		cfg.RateLimit.TrustProxy = *p.TrustProxy
	}
	if len(p.CORSOrigins) > 0 {
		cfg.CORS.AllowedOrigins = append([]string(nil), p.CORSOrigins...)
	}
	return nil
}

func presetField(presets *ratelimit.Presets, name string) (*ratelimit.Config, error) {
	switch name {
	case "strict":
		return &presets.Strict, nil
	case "standard":
		return &presets.Standard, nil
	case "lenient":
		return &presets.Lenient, nil
	}
	return nil, fmt.Errorf("unknown rate limit preset %q in policy file", name)
}
