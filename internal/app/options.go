package service

import (
	workerpool "github.com/okian/evoked/internal/adapters/mq/worker"
	"github.com/okian/evoked/internal/adapters/repository"
	"github.com/okian/evoked/internal/config"
	"github.com/okian/evoked/internal/domain/epoch"
	"github.com/okian/evoked/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger logger.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPublisher sets the outbound result publisher. Required.
func WithPublisher(pub workerpool.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithStore injects a tally store, replacing the in-memory default.
func WithStore(s repository.Store) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.tally = s
		}
	}
}

// WithWallClock overrides the wall-clock source; tests drive time manually.
func WithWallClock(now func() float64) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSampleRate sets the nominal acquisition rate in Hz.
func WithSampleRate(rate float64) Option {
	return func(p *Pipeline) {
		if rate > 0 {
			p.sampleRate = rate
		}
	}
}

// WithChannelNames sets the acquisition channels in sample order.
func WithChannelNames(names []string) Option {
	return func(p *Pipeline) {
		if len(names) > 0 {
			p.channelNames = names
		}
	}
}

// WithWindow sets the epoch geometry.
func WithWindow(w epoch.Window) Option {
	return func(p *Pipeline) {
		p.window = w
	}
}

// WithRetention sets the buffer history bound in seconds.
func WithRetention(seconds float64) Option {
	return func(p *Pipeline) {
		if seconds > 0 {
			p.retention = seconds
		}
	}
}

// WithTolerance sets the out-of-order sample tolerance in seconds.
func WithTolerance(seconds float64) Option {
	return func(p *Pipeline) {
		if seconds >= 0 {
			p.tolerance = seconds
		}
	}
}

// WithBandpass sets the preprocessing passband corners in Hz.
func WithBandpass(low, high float64) Option {
	return func(p *Pipeline) {
		if low > 0 && high > low {
			p.lowCut = low
			p.highCut = high
		}
	}
}

// WithThreshold sets the full-confidence amplitude in microvolts.
func WithThreshold(uv float64) Option {
	return func(p *Pipeline) {
		if uv > 0 {
			p.threshold = uv
		}
	}
}

// WithMinConfidence sets the detection decision cut.
func WithMinConfidence(c float64) Option {
	return func(p *Pipeline) {
		if c >= 0 && c <= 1 {
			p.minConfidence = c
		}
	}
}

// WithChannelWeights sets per-channel scoring weights and the default for
// unlisted channels.
func WithChannelWeights(weights map[string]float64, def float64) Option {
	return func(p *Pipeline) {
		p.weights = weights
		if def > 0 {
			p.defaultWeight = def
		}
	}
}

// WithJitterTolerance sets the accepted epoch sample-count deviation.
func WithJitterTolerance(samples int) Option {
	return func(p *Pipeline) {
		if samples >= 0 {
			p.jitterTol = samples
		}
	}
}

// WithStrictJitter discards flagged epochs instead of scoring them.
func WithStrictJitter(strict bool) Option {
	return func(p *Pipeline) {
		p.strictJitter = strict
	}
}

// WithQueueSize bounds the epoch queue.
func WithQueueSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(p *Pipeline) {
		if count > 0 {
			p.workerCount = count
		}
	}
}

// WithDedupeSize sets the event deduplication cache size.
func WithDedupeSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.dedupeSize = size
		}
	}
}

// OptionsFromConfig maps a loaded Config onto pipeline options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithSampleRate(cfg.SampleRate),
		WithChannelNames(cfg.ChannelNames),
		WithWindow(epoch.Window{
			BaselineStart: cfg.BaselineStartMS / 1e3,
			BaselineEnd:   cfg.BaselineEndMS / 1e3,
			Length:        cfg.EpochLengthMS / 1e3,
			ResponseStart: cfg.ResponseStartMS / 1e3,
			ResponseEnd:   cfg.ResponseEndMS / 1e3,
		}),
		WithRetention(cfg.RetentionSeconds),
		WithTolerance(cfg.OutOfOrderToleranceMS / 1e3),
		WithBandpass(cfg.BandpassLowHz, cfg.BandpassHighHz),
		WithThreshold(cfg.DetectionThresholdUV),
		WithMinConfidence(cfg.MinConfidence),
		WithChannelWeights(cfg.ChannelWeights, cfg.DefaultChannelWeight),
		WithJitterTolerance(cfg.JitterToleranceSamples),
		WithStrictJitter(cfg.StrictJitter),
		WithQueueSize(cfg.QueueSize),
		WithWorkerCount(cfg.WorkerCount),
		WithDedupeSize(cfg.DedupeSize),
	}
}
