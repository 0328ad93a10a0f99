package config

import (
	"context"
	"fmt"
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
//  2. file (YAML) if EVOKED_CONFIG is set
//  3. env (prefix EVOKED_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("EVOKED_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: EVOKED_ADDR, EVOKED_SAMPLE_RATE, ...
	// Map env keys like EVOKED_SAMPLE_RATE -> sample_rate (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("EVOKED_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "evoked_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run on. Geometry
// errors are fatal at startup rather than surfacing as per-epoch failures.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive", ErrInvalidConfig)
	}
	if len(c.ChannelNames) == 0 {
		return fmt.Errorf("%w: channel_names must not be empty", ErrInvalidConfig)
	}
	if c.RetentionSeconds <= 0 {
		return fmt.Errorf("%w: retention_seconds must be positive", ErrInvalidConfig)
	}
	if c.EpochLengthMS <= 0 {
		return fmt.Errorf("%w: epoch_length_ms must be positive", ErrInvalidConfig)
	}
	if c.BaselineStartMS > c.BaselineEndMS {
		return fmt.Errorf("%w: baseline window is inverted", ErrInvalidConfig)
	}
	if c.ResponseStartMS >= c.ResponseEndMS {
		return fmt.Errorf("%w: response window is inverted", ErrInvalidConfig)
	}
	if c.ResponseEndMS-c.BaselineStartMS > c.EpochLengthMS {
		return fmt.Errorf("%w: response window falls outside the epoch", ErrInvalidConfig)
	}
	if c.EpochLengthMS/1e3 > c.RetentionSeconds {
		return fmt.Errorf("%w: retention_seconds shorter than one epoch", ErrInvalidConfig)
	}
	if c.BandpassLowHz <= 0 || c.BandpassHighHz <= c.BandpassLowHz {
		return fmt.Errorf("%w: bandpass corners are inverted", ErrInvalidConfig)
	}
	if c.BandpassHighHz >= c.SampleRate/2 {
		return fmt.Errorf("%w: bandpass_high_hz at or above Nyquist", ErrInvalidConfig)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be in [0, 1]", ErrInvalidConfig)
	}
	if c.DetectionThresholdUV <= 0 {
		return fmt.Errorf("%w: detection_threshold_uv must be positive", ErrInvalidConfig)
	}
	return nil
}
