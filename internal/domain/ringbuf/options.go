package ringbuf

// Option applies a configuration option to the Buffer.
type Option func(*Buffer)

// WithChannels sets the fixed per-sample channel count.
func WithChannels(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.channels = n
		}
	}
}

// WithRate sets the nominal sample rate in Hz, used to size the
// preallocated backing array for one retention window.
func WithRate(hz float64) Option {
	return func(b *Buffer) {
		if hz > 0 {
			b.rate = hz
		}
	}
}

// WithRetention sets the retained window length in seconds.
func WithRetention(seconds float64) Option {
	return func(b *Buffer) {
		if seconds > 0 {
			b.retention = seconds
		}
	}
}

// WithTolerance sets the accepted out-of-order arrival window in seconds.
func WithTolerance(seconds float64) Option {
	return func(b *Buffer) {
		if seconds >= 0 {
			b.tolerance = seconds
		}
	}
}
