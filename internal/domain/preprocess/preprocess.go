// Package preprocess band-limits and baseline-corrects raw epochs.
//
// Both stages are deterministic, side-effect-free functions of the raw epoch
// and the configuration: the input epoch is never mutated and no state is
// carried between calls.
package preprocess

import (
	"fmt"

	"github.com/okian/evoked/internal/domain/model"
)

// Default passband constants, Hz.
const (
	DefaultLowCut  = 0.5
	DefaultHighCut = 30.0
)

// Config describes the preprocessing applied to every epoch.
// BaselineStart/BaselineEnd are seconds relative to the stimulus.
type Config struct {
	LowCut        float64
	HighCut       float64
	SampleRate    float64
	BaselineStart float64
	BaselineEnd   float64
}

// Processor applies the configured band-limit and baseline correction.
// It is immutable after construction and safe for concurrent use.
type Processor struct {
	cfg    Config
	filter *bandpass
}

// New creates a processor, designing the filter once up front.
func New(cfg Config) (*Processor, error) {
	if cfg.BaselineStart >= cfg.BaselineEnd {
		return nil, fmt.Errorf("%w: [%.3f, %.3f]", ErrInvalidBaseline, cfg.BaselineStart, cfg.BaselineEnd)
	}
	f, err := newBandpass(cfg.LowCut, cfg.HighCut, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg, filter: f}, nil
}

// Process returns a new epoch with each channel band-limited over the full
// window and baseline-corrected. Filtering the whole epoch keeps edge
// transients away from the response region.
func (p *Processor) Process(e *model.Epoch) (*model.Epoch, error) {
	if e.NumSamples() == 0 {
		return nil, fmt.Errorf("%w: empty epoch", ErrEmptyEpoch)
	}

	out := e.Clone()
	for ch := range out.Channels {
		out.Channels[ch] = p.filter.filtfilt(out.Channels[ch])
	}
	BaselineCorrect(out, p.cfg.BaselineStart, p.cfg.BaselineEnd)
	return out, nil
}

// BaselineCorrect subtracts the per-channel mean over the pre-stimulus
// baseline sub-window from every sample, in place. Applying it twice with
// the same window is a no-op on the second pass.
func BaselineCorrect(e *model.Epoch, start, end float64) {
	n := e.NumSamples()
	lo := clamp(e.Index(start), 0, n)
	hi := clamp(e.Index(end), 0, n)
	if hi <= lo {
		return
	}

	for _, ch := range e.Channels {
		var mean float64
		for _, v := range ch[lo:hi] {
			mean += v
		}
		mean /= float64(hi - lo)
		for i := range ch {
			ch[i] -= mean
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
