// Package simulate produces synthetic multi-channel biosignal streams with
// injectable evoked responses, for bring-up and end-to-end testing without
// acquisition hardware.
package simulate

import (
	"math"
	"math/rand"
	"strings"
	"sync"
)

// Waveform and artifact constants.
const (
	// whiteNoiseFraction scales the broadband noise against the rhythm
	// amplitude.
	whiteNoiseFraction = 0.1

	// blinkDuration and blinkRatePerSecond shape eye-blink artifacts.
	blinkDuration      = 0.2
	blinkRatePerSecond = 0.1

	// blinkAmplitudeFactor scales blinks against the noise amplitude.
	blinkAmplitudeFactor = 5.0

	// responseWindowSigmas bounds how far from its peak a response still
	// contributes.
	responseWindowSigmas = 5.0
)

// rhythm is one background oscillation component.
type rhythm struct {
	freq  float64
	amp   float64
	phase float64
	// modFreq slowly modulates the amplitude so the background never
	// looks stationary.
	modFreq float64
}

// blink is one scheduled eye-blink artifact.
type blink struct {
	start float64
}

// response is one scheduled evoked deflection.
type response struct {
	at float64
}

// Generator synthesizes one sample vector per call. All times are session
// seconds starting at zero.
type Generator struct {
	mu sync.Mutex

	rate          float64
	channels      []string
	noiseAmp      float64
	backgroundAmp float64
	respAmp       float64
	respLatency   float64
	respWidth     float64
	artifacts     bool

	rng       *rand.Rand
	rhythms   [][]rhythm
	blinks    []blink
	responses []response
	lastT     float64
}

// NewGenerator creates a generator with session defaults.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rate:          250.0,
		channels:      []string{"Cz"},
		noiseAmp:      10.0,
		backgroundAmp: 1.0,
		respAmp:       5.0,
		respLatency:   0.3,
		respWidth:     0.1,
		artifacts:     true,
		rng:           rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.rhythms = make([][]rhythm, len(g.channels))
	for ch := range g.channels {
		g.rhythms[ch] = []rhythm{
			{freq: 10.0 + g.rng.Float64()*2, amp: g.backgroundAmp, phase: g.rng.Float64() * 2 * math.Pi, modFreq: 0.1},
			{freq: 20.0 + g.rng.Float64()*4, amp: g.backgroundAmp * 0.4, phase: g.rng.Float64() * 2 * math.Pi, modFreq: 0.07},
			{freq: 4.0 + g.rng.Float64(), amp: g.backgroundAmp * 0.6, phase: g.rng.Float64() * 2 * math.Pi, modFreq: 0.05},
		}
	}
	return g
}

// Channels returns the configured channel names in sample order.
func (g *Generator) Channels() []string { return g.channels }

// Rate returns the sample rate in Hz.
func (g *Generator) Rate() float64 { return g.rate }

// InjectResponse schedules one evoked deflection peaking respLatency after
// the given session time.
func (g *Generator) InjectResponse(at float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses = append(g.responses, response{at: at})
}

// Sample synthesizes the channel vector for session time t. Calls must use
// monotonically non-decreasing t; artifact scheduling keys off the stride.
func (g *Generator) Sample(t float64) []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.scheduleBlinksLocked(t)
	g.pruneLocked(t)

	out := make([]float64, len(g.channels))
	for ch, name := range g.channels {
		v := g.backgroundLocked(ch, t)
		v += g.noiseAmp * whiteNoiseFraction * g.rng.NormFloat64()
		v += g.responsesLocked(name, t)
		if g.artifacts {
			v += g.blinksLocked(name, t)
		}
		out[ch] = v
	}
	g.lastT = t
	return out
}

// backgroundLocked sums the channel's rhythms with slow amplitude drift.
func (g *Generator) backgroundLocked(ch int, t float64) float64 {
	var v float64
	for _, r := range g.rhythms[ch] {
		mod := 1.0 + 0.3*math.Sin(2*math.Pi*r.modFreq*t)
		v += r.amp * mod * math.Sin(2*math.Pi*r.freq*t+r.phase)
	}
	return v
}

// responsesLocked evaluates all scheduled deflections at t. The waveform is
// a Gaussian peaking at the injection time plus latency, weighted down on
// channels away from the midline.
func (g *Generator) responsesLocked(channel string, t float64) float64 {
	sigma := g.respWidth / 3.0
	var v float64
	for _, r := range g.responses {
		d := t - r.at - g.respLatency
		if math.Abs(d) > responseWindowSigmas*sigma {
			continue
		}
		v += g.respAmp * channelResponseWeight(channel) * math.Exp(-0.5*(d/sigma)*(d/sigma))
	}
	return v
}

// blinksLocked evaluates active blink artifacts: a sharp rise with an
// exponential decay, dominant on frontal channels.
func (g *Generator) blinksLocked(channel string, t float64) float64 {
	var v float64
	for _, b := range g.blinks {
		d := t - b.start
		if d < 0 || d > blinkDuration {
			continue
		}
		v += g.noiseAmp * blinkAmplitudeFactor * frontalWeight(channel) * math.Exp(-d/(blinkDuration/4))
	}
	return v
}

// scheduleBlinksLocked rolls for a new blink once per sample stride.
func (g *Generator) scheduleBlinksLocked(t float64) {
	if !g.artifacts || t <= g.lastT {
		return
	}
	if g.rng.Float64() < blinkRatePerSecond/g.rate {
		g.blinks = append(g.blinks, blink{start: t})
	}
}

// pruneLocked drops responses and blinks that can no longer contribute.
func (g *Generator) pruneLocked(t float64) {
	sigma := g.respWidth / 3.0
	keepR := g.responses[:0]
	for _, r := range g.responses {
		if t-r.at-g.respLatency <= responseWindowSigmas*sigma {
			keepR = append(keepR, r)
		}
	}
	g.responses = keepR

	keepB := g.blinks[:0]
	for _, b := range g.blinks {
		if t-b.start <= blinkDuration {
			keepB = append(keepB, b)
		}
	}
	g.blinks = keepB
}

// channelResponseWeight mirrors the spatial distribution of the evoked
// response: full on central and parietal sites, attenuated elsewhere.
func channelResponseWeight(channel string) float64 {
	switch channel {
	case "Cz", "C3", "C4", "Pz":
		return 1.0
	default:
		return 0.7
	}
}

// frontalWeight concentrates blink artifacts on frontal sites.
func frontalWeight(channel string) float64 {
	if strings.HasPrefix(channel, "F") {
		return 1.0
	}
	return 0.2
}
