// Package epoch defines epoch window geometry and extraction from the
// sample ring buffer.
package epoch

import (
	"fmt"
	"math"
)

// Window describes the epoch geometry relative to the stimulus at t=0.
// All fields are seconds. The epoch covers [BaselineStart, BaselineStart+Length];
// BaselineStart is negative, so the window ends Length+BaselineStart past the
// stimulus. Response bounds the canonical response sub-window used by the
// detector.
type Window struct {
	BaselineStart float64
	BaselineEnd   float64
	Length        float64
	ResponseStart float64
	ResponseEnd   float64
}

// Start returns the window start relative to the stimulus.
func (w Window) Start() float64 { return w.BaselineStart }

// End returns the window end relative to the stimulus.
func (w Window) End() float64 { return w.BaselineStart + w.Length }

// ExpectedSamples returns the nominal sample count for the window at rate.
func (w Window) ExpectedSamples(rate float64) int {
	return int(math.Round(w.Length * rate))
}

// Validate rejects nonsensical geometry. Called once at construction;
// geometry errors are fatal, not per-event conditions.
func (w Window) Validate() error {
	switch {
	case w.Length <= 0:
		return fmt.Errorf("%w: epoch length %.3fs must be positive", ErrInvalidWindow, w.Length)
	case w.BaselineStart > w.BaselineEnd:
		return fmt.Errorf("%w: baseline [%.3f, %.3f] reversed", ErrInvalidWindow, w.BaselineStart, w.BaselineEnd)
	case w.BaselineEnd > 0:
		return fmt.Errorf("%w: baseline must end at or before the stimulus", ErrInvalidWindow)
	case w.BaselineStart < -w.Length:
		return fmt.Errorf("%w: baseline starts before the epoch", ErrInvalidWindow)
	case w.ResponseStart >= w.ResponseEnd:
		return fmt.Errorf("%w: response window [%.3f, %.3f] reversed or empty", ErrInvalidWindow, w.ResponseStart, w.ResponseEnd)
	case w.ResponseStart < 0 || w.ResponseEnd > w.End():
		return fmt.Errorf("%w: response window [%.3f, %.3f] outside epoch (end %.3f)",
			ErrInvalidWindow, w.ResponseStart, w.ResponseEnd, w.End())
	}
	return nil
}
