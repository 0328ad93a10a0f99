package detect

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithThreshold sets the peak amplitude that earns a full amplitude score.
func WithThreshold(microvolts float64) Option {
	return func(s *Scorer) {
		if microvolts > 0 {
			s.threshold = microvolts
		}
	}
}

// WithMinConfidence sets the detection decision threshold.
func WithMinConfidence(c float64) Option {
	return func(s *Scorer) {
		s.minConfidence = c
	}
}

// WithFeatureWeights sets the amplitude and template-correlation weights.
func WithFeatureWeights(amplitude, correlation float64) Option {
	return func(s *Scorer) {
		s.amplitudeWeight = amplitude
		s.correlationWeight = correlation
	}
}

// WithChannelNames sets the channel names in epoch channel order, used to
// look up per-channel relevance weights.
func WithChannelNames(names []string) Option {
	return func(s *Scorer) {
		s.channelNames = append([]string(nil), names...)
	}
}

// WithChannelWeights sets per-channel relevance weights by name and the
// default for unnamed channels.
func WithChannelWeights(weights map[string]float64, defaultWeight float64) Option {
	return func(s *Scorer) {
		if len(weights) > 0 {
			s.channelWeights = make(map[string]float64, len(weights))
			for name, w := range weights {
				if w >= 0 {
					s.channelWeights[name] = w
				}
			}
		}
		if defaultWeight >= 0 {
			s.defaultWeight = defaultWeight
		}
	}
}

// WithTemplate sets the idealized response latency and width, seconds.
func WithTemplate(latency, width float64) Option {
	return func(s *Scorer) {
		if latency > 0 {
			s.templateLatency = latency
		}
		if width > 0 {
			s.templateWidth = width
		}
	}
}
