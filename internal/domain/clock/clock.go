// Package clock maintains per-source offset estimates between remote
// producer clocks and the pipeline's local reference clock.
//
// Each correspondence sample (a remote timestamp paired with the local time
// at receipt) refines a smoothed offset; once enough samples span enough
// time, a linear fit bounds cumulative drift instead of only instantaneous
// jitter.
package clock

import (
	"sync"

	"github.com/okian/evoked/pkg/metrics"
)

// Default reconciler constants.
const (
	defaultAlpha  = 0.2 // EMA smoothing factor for the offset
	maxPoints     = 128 // trailing correspondence window per source
	minDriftCount = 8   // points required before fitting a drift slope
	minDriftSpan  = 2.0 // seconds of local time the fit must cover
)

// point is one correspondence sample: the local receipt time and the
// observed local-minus-source delta at that moment.
type point struct {
	local float64
	delta float64
}

// source holds the running estimate for one remote clock.
type source struct {
	offset float64 // EMA of local - source
	drift  float64 // d(delta)/d(local), seconds per second
	refT   float64 // local time the drift slope is anchored at
	points []point
}

// Reconciler converts remote timestamps into local reference time.
// The zero value is not usable; call New.
type Reconciler struct {
	mu      sync.RWMutex
	alpha   float64
	sources map[string]*source
}

// New creates a reconciler with configuration options.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		alpha:   defaultAlpha,
		sources: make(map[string]*source),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Update folds one correspondence sample into the estimate for sourceID.
func (r *Reconciler) Update(sourceID string, sourceTS, localTS float64) {
	delta := localTS - sourceTS

	r.mu.Lock()
	s, ok := r.sources[sourceID]
	if !ok {
		s = &source{offset: delta}
		r.sources[sourceID] = s
	} else {
		s.offset = r.alpha*delta + (1-r.alpha)*s.offset
	}

	s.points = append(s.points, point{local: localTS, delta: delta})
	if len(s.points) > maxPoints {
		s.points = s.points[len(s.points)-maxPoints:]
	}
	s.fitDrift()
	offset := s.offset
	r.mu.Unlock()

	metrics.UpdateClockOffset(sourceID, offset)
}

// fitDrift least-squares fits delta against local time over the trailing
// window. The slope captures pacing error that compounds over a session;
// with too few points or too short a span the slope stays zero.
func (s *source) fitDrift() {
	n := len(s.points)
	if n < minDriftCount {
		return
	}
	span := s.points[n-1].local - s.points[0].local
	if span < minDriftSpan {
		return
	}

	var meanT, meanD float64
	for _, p := range s.points {
		meanT += p.local
		meanD += p.delta
	}
	meanT /= float64(n)
	meanD /= float64(n)

	var num, den float64
	for _, p := range s.points {
		dt := p.local - meanT
		num += dt * (p.delta - meanD)
		den += dt * dt
	}
	if den == 0 {
		return
	}

	s.drift = num / den
	s.refT = meanT
	// Anchor the offset on the fit so EMA lag does not fight the slope.
	s.offset = meanD
}

// Translate converts a source timestamp to local reference time.
// Returns ErrUncalibrated when no correspondence sample exists for the
// source; a silent zero-offset guess would misalign every epoch.
func (r *Reconciler) Translate(sourceID string, sourceTS float64) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[sourceID]
	if !ok {
		return 0, ErrUncalibrated
	}

	local := sourceTS + s.offset
	if s.drift != 0 {
		local += s.drift * (local - s.refT)
	}
	return local, nil
}

// Offset returns the current smoothed offset estimate for a source.
func (r *Reconciler) Offset(sourceID string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[sourceID]
	if !ok {
		return 0, ErrUncalibrated
	}
	return s.offset, nil
}

// Calibrated reports whether a source has at least one correspondence sample.
func (r *Reconciler) Calibrated(sourceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[sourceID]
	return ok
}
