// Package detect scores preprocessed epochs against the expected
// evoked-response pattern.
//
// Scoring is a pure, stateless function of one epoch plus static
// configuration: no history is kept between calls, so identical inputs
// always produce identical scores.
package detect

import (
	"fmt"
	"math"

	"github.com/okian/evoked/internal/domain/epoch"
	"github.com/okian/evoked/internal/domain/model"
)

// Default scoring constants. The weighting and the channel relevance values
// are heuristic configuration defaults, not calibrated ground truth.
const (
	defaultThreshold         = 2.0 // peak amplitude, microvolts, for a full amplitude score
	defaultMinConfidence     = 0.6
	defaultAmplitudeWeight   = 0.7
	defaultCorrelationWeight = 0.3
	defaultChannelWeight     = 0.5
	defaultTemplateLatency   = 0.3 // seconds past the stimulus
	defaultTemplateWidth     = 0.1 // seconds
)

// canonicalSites carry full weight by default; midline centro-parietal
// electrodes are where the expected response is strongest.
var canonicalSites = map[string]float64{ //nolint:gochecknoglobals // static default table
	"Cz":  1.0,
	"CPz": 1.0,
	"Pz":  1.0,
}

// Score is the outcome of scoring one epoch.
type Score struct {
	Confidence float64
	Detected   bool
	// Channels holds the per-channel combined scores that were averaged
	// into Confidence, in epoch channel order.
	Channels []float64
}

// Scorer computes bounded confidence scores for preprocessed epochs.
// It is immutable after construction and safe for concurrent use.
type Scorer struct {
	rate              float64
	window            epoch.Window
	threshold         float64
	minConfidence     float64
	amplitudeWeight   float64
	correlationWeight float64
	channelNames      []string
	channelWeights    map[string]float64
	defaultWeight     float64
	templateLatency   float64
	templateWidth     float64
	template          []float64
}

// NewScorer creates a scorer for the given rate and geometry.
func NewScorer(rate float64, window epoch.Window, opts ...Option) (*Scorer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %.3f", ErrInvalidConfig, rate)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	s := &Scorer{
		rate:              rate,
		window:            window,
		threshold:         defaultThreshold,
		minConfidence:     defaultMinConfidence,
		amplitudeWeight:   defaultAmplitudeWeight,
		correlationWeight: defaultCorrelationWeight,
		channelWeights:    canonicalSites,
		defaultWeight:     defaultChannelWeight,
		templateLatency:   defaultTemplateLatency,
		templateWidth:     defaultTemplateWidth,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.threshold <= 0:
		return nil, fmt.Errorf("%w: amplitude threshold must be positive", ErrInvalidConfig)
	case s.minConfidence < 0 || s.minConfidence > 1:
		return nil, fmt.Errorf("%w: min confidence %.3f outside [0, 1]", ErrInvalidConfig, s.minConfidence)
	case s.amplitudeWeight < 0 || s.correlationWeight < 0 || s.amplitudeWeight+s.correlationWeight == 0:
		return nil, fmt.Errorf("%w: feature weights must be non-negative and not both zero", ErrInvalidConfig)
	}

	s.template = newTemplate(s.window, s.rate, s.templateLatency, s.templateWidth)
	return s, nil
}

// MinConfidence returns the configured detection threshold.
func (s *Scorer) MinConfidence() float64 { return s.minConfidence }

// Score computes the bounded confidence for one preprocessed epoch.
func (s *Scorer) Score(e *model.Epoch) Score {
	n := e.NumSamples()
	lo := clamp(e.Index(s.window.ResponseStart), 0, n)
	hi := clamp(e.Index(s.window.ResponseEnd), 0, n)

	out := Score{Channels: make([]float64, e.NumChannels())}
	if hi <= lo {
		return out
	}

	var weighted, totalWeight float64
	for ch, data := range e.Channels {
		seg := data[lo:hi]

		amp := clampF(peak(seg)/s.threshold, 0, 1)
		corr := clampF(pearson(seg, resample(s.template, len(seg))), 0, 1)
		combined := clampF(s.amplitudeWeight*amp+s.correlationWeight*corr, 0, 1)

		out.Channels[ch] = combined
		w := s.channelWeight(ch)
		weighted += w * combined
		totalWeight += w
	}

	if totalWeight > 0 {
		out.Confidence = clampF(weighted/totalWeight, 0, 1)
	}
	out.Detected = out.Confidence >= s.minConfidence
	return out
}

// channelWeight resolves the relevance weight for channel index ch.
func (s *Scorer) channelWeight(ch int) float64 {
	if ch < len(s.channelNames) {
		if w, ok := s.channelWeights[s.channelNames[ch]]; ok {
			return w
		}
	}
	return s.defaultWeight
}

// peak returns the maximum (positive) value of seg.
func peak(seg []float64) float64 {
	m := math.Inf(-1)
	for _, v := range seg {
		if v > m {
			m = v
		}
	}
	return m
}

// pearson returns the correlation coefficient of a and b, or 0 when either
// side has no variance or lengths differ.
func pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(len(a))
	meanB /= float64(len(b))

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
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

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
