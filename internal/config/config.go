// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SampleRate is the nominal acquisition rate in Hz.
	SampleRate float64 `koanf:"sample_rate"`

	// ChannelNames lists acquisition channels in sample order.
	ChannelNames []string `koanf:"channel_names"`

	// RetentionSeconds bounds the sample buffer history.
	RetentionSeconds float64 `koanf:"retention_seconds"`

	// OutOfOrderToleranceMS bounds how late a sample may arrive and still
	// be inserted in order.
	OutOfOrderToleranceMS float64 `koanf:"out_of_order_tolerance_ms"`

	// Epoch geometry, all relative to the stimulus event in milliseconds.
	BaselineStartMS float64 `koanf:"baseline_start_ms"`
	BaselineEndMS   float64 `koanf:"baseline_end_ms"`
	EpochLengthMS   float64 `koanf:"epoch_length_ms"`
	ResponseStartMS float64 `koanf:"response_start_ms"`
	ResponseEndMS   float64 `koanf:"response_end_ms"`

	// Bandpass corners in Hz.
	BandpassLowHz  float64 `koanf:"bandpass_low_hz"`
	BandpassHighHz float64 `koanf:"bandpass_high_hz"`

	// DetectionThresholdUV is the amplitude that maps to full confidence,
	// in microvolts.
	DetectionThresholdUV float64 `koanf:"detection_threshold_uv"`

	// MinConfidence is the detection decision cut.
	MinConfidence float64 `koanf:"min_confidence"`

	// ChannelWeights maps channel names to scoring weights.
	ChannelWeights map[string]float64 `koanf:"channel_weights"`

	// DefaultChannelWeight is used for channels absent from ChannelWeights.
	DefaultChannelWeight float64 `koanf:"default_channel_weight"`

	// JitterToleranceSamples bounds acceptable epoch length deviation.
	JitterToleranceSamples int `koanf:"jitter_tolerance_samples"`

	// StrictJitter discards flagged epochs instead of scoring them.
	StrictJitter bool `koanf:"strict_jitter"`

	// QueueSize bounds the in-memory epoch queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with session defaults. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		SampleRate:            250.0,
		ChannelNames:          []string{"Cz"},
		RetentionSeconds:      5.0,
		OutOfOrderToleranceMS: 50.0,
		BaselineStartMS:       -200.0,
		BaselineEndMS:         0.0,
		EpochLengthMS:         800.0,
		ResponseStartMS:       250.0,
		ResponseEndMS:         500.0,
		BandpassLowHz:         0.5,
		BandpassHighHz:        30.0,
		DetectionThresholdUV:  2.0,
		MinConfidence:         0.6,
		ChannelWeights: map[string]float64{
			"Cz":  1.0,
			"CPz": 1.0,
			"Pz":  1.0,
		},
		DefaultChannelWeight:   0.5,
		JitterToleranceSamples: 2,
		StrictJitter:           false,
		QueueSize:              1024,
		WorkerCount:            runtime.NumCPU(),
		DedupeSize:             4096,
	}
	return c
}
