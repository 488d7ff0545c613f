package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if PULSECOACH_CONFIG is set
//  3. env (prefix PULSECOACH_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("PULSECOACH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: PULSECOACH_ADDR, PULSECOACH_TARGET_BPM, ...
	// Map env keys like PULSECOACH_TARGET_BPM -> target_bpm (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("PULSECOACH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "pulsecoach_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.TargetBPM <= 0 {
		return nil, errors.New("target_bpm must be positive")
	}
	if cfg.MinIntervalSecs <= 0 || cfg.MaxIntervalSecs <= cfg.MinIntervalSecs {
		return nil, errors.New("interval bounds must satisfy 0 < min < max")
	}
	if cfg.RateBandLow <= 0 || cfg.RateBandHigh <= cfg.RateBandLow {
		return nil, errors.New("rate band must satisfy 0 < low < high")
	}
	return &cfg, nil
}
