package simulate

import "math/rand"

// GeneratorOption applies a configuration option to the Generator.
type GeneratorOption func(*Generator)

// WithRate sets the sample rate in Hz.
func WithRate(rate float64) GeneratorOption {
	return func(g *Generator) {
		if rate > 0 {
			g.rate = rate
		}
	}
}

// WithChannels sets the channel names in sample order.
func WithChannels(names []string) GeneratorOption {
	return func(g *Generator) {
		if len(names) > 0 {
			g.channels = names
		}
	}
}

// WithNoiseAmplitude sets the artifact and noise scale in microvolts.
func WithNoiseAmplitude(uv float64) GeneratorOption {
	return func(g *Generator) {
		if uv >= 0 {
			g.noiseAmp = uv
		}
	}
}

// WithBackgroundAmplitude sets the rhythm amplitude in microvolts.
func WithBackgroundAmplitude(uv float64) GeneratorOption {
	return func(g *Generator) {
		if uv >= 0 {
			g.backgroundAmp = uv
		}
	}
}

// WithResponse shapes the injected deflection: peak amplitude in microvolts,
// latency and width in seconds.
func WithResponse(amp, latency, width float64) GeneratorOption {
	return func(g *Generator) {
		if amp > 0 && latency >= 0 && width > 0 {
			g.respAmp = amp
			g.respLatency = latency
			g.respWidth = width
		}
	}
}

// WithArtifacts toggles blink artifact generation.
func WithArtifacts(enabled bool) GeneratorOption {
	return func(g *Generator) {
		g.artifacts = enabled
	}
}

// WithSeed fixes the random source for reproducible sessions.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}
