package preprocess

import (
	"fmt"
	"math"
)

// butterworthQ is the Q of a single maximally flat second-order section.
const butterworthQ = math.Sqrt2 / 2

// padFactor sets the reflection padding length in filter orders, matching
// the usual forward-backward filtering practice.
const padFactor = 3

// biquad is one second-order IIR section in direct form II transposed,
// normalized so a0 == 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// newHighpass designs a second-order Butterworth high-pass at cutoff Hz.
func newHighpass(cutoff, rate float64) biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * butterworthQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosW) / 2 / a0,
		b1: -(1 + cosW) / a0,
		b2: (1 + cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

// newLowpass designs a second-order Butterworth low-pass at cutoff Hz.
func newLowpass(cutoff, rate float64) biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * butterworthQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosW) / 2 / a0,
		b1: (1 - cosW) / a0,
		b2: (1 - cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

// apply runs the section over x in place with zero initial state.
func (q biquad) apply(x []float64) {
	var z1, z2 float64
	for i, v := range x {
		y := q.b0*v + z1
		z1 = q.b1*v - q.a1*y + z2
		z2 = q.b2*v - q.a2*y
		x[i] = y
	}
}

// bandpass is a cascade of one high-pass and one low-pass section, applied
// forward and backward for zero phase shift. The forward-backward pass
// squares the magnitude response, so the cascade band-limits at effectively
// fourth order.
type bandpass struct {
	sections []biquad
	padLen   int
}

// newBandpass designs a zero-phase band-limiting filter for the passband
// [low, high] Hz at the given sample rate.
func newBandpass(low, high, rate float64) (*bandpass, error) {
	nyquist := rate / 2
	switch {
	case rate <= 0:
		return nil, fmt.Errorf("%w: sample rate %.3f", ErrInvalidPassband, rate)
	case low <= 0 || high <= low:
		return nil, fmt.Errorf("%w: [%.2f, %.2f] Hz", ErrInvalidPassband, low, high)
	case high >= nyquist:
		return nil, fmt.Errorf("%w: high cut %.2f Hz at or above Nyquist %.2f Hz", ErrInvalidPassband, high, nyquist)
	}

	sections := []biquad{newHighpass(low, rate), newLowpass(high, rate)}
	// Three coefficients per section, padFactor orders of padding.
	return &bandpass{
		sections: sections,
		padLen:   padFactor * 3 * len(sections),
	}, nil
}

// filtfilt filters x forward then backward, using odd-reflection padding at
// both ends to suppress edge transients, and returns a new slice.
func (f *bandpass) filtfilt(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	pad := f.padLen
	if pad >= n {
		pad = n - 1
	}

	ext := make([]float64, n+2*pad)
	for i := 0; i < pad; i++ {
		ext[i] = 2*x[0] - x[pad-i]
		ext[pad+n+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)

	for _, s := range f.sections {
		s.apply(ext)
	}
	reverse(ext)
	for _, s := range f.sections {
		s.apply(ext)
	}
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
