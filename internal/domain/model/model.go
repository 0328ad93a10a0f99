// Package model contains domain models passed between pipeline stages.
package model

// Sample is one multi-channel reading from an acquisition source.
// Timestamps are monotonic seconds on the producer's clock until the
// ingestion path translates them into the buffer's reference clock.
// A Sample is immutable once created; Values must not be mutated after
// construction.
type Sample struct {
	Timestamp float64
	Values    []float64
}

// EventKind enumerates the stimulus marker kinds the pipeline understands.
type EventKind string

const (
	// KindTargetSet announces the identifier the subject is asked to focus on.
	KindTargetSet EventKind = "target_set"
	// KindFlash marks one stimulus presentation of an identifier.
	KindFlash EventKind = "flash"
)

// StimulusEvent is a discrete marker produced by the stimulus-presentation
// source. Timestamp is on the producer's clock.
type StimulusEvent struct {
	ID         string
	SourceID   string
	Kind       EventKind
	Identifier string
	Timestamp  float64
}

// Epoch is a fixed-length, channel-major block of samples anchored to one
// stimulus event. Start is the local-clock timestamp of the first sample;
// EventTime is the local-clock timestamp of the stimulus. Channels holds one
// slice per channel, all of equal length.
type Epoch struct {
	EventID         string
	Identifier      string
	EventTime       float64
	Start           float64
	SampleRate      float64
	Channels        [][]float64
	ExpectedSamples int
	JitterExceeded  bool
}

// NumChannels returns the channel count of the epoch.
func (e *Epoch) NumChannels() int {
	return len(e.Channels)
}

// NumSamples returns the per-channel sample count of the epoch.
func (e *Epoch) NumSamples() int {
	if len(e.Channels) == 0 {
		return 0
	}
	return len(e.Channels[0])
}

// Index maps a time offset relative to the stimulus onto a sample index.
// The returned index may lie outside [0, NumSamples) when the offset falls
// outside the extracted window; callers clamp as needed.
func (e *Epoch) Index(offset float64) int {
	return int((e.EventTime + offset - e.Start) * e.SampleRate)
}

// Clone returns a deep copy of the epoch. Preprocessing operates on clones so
// the raw epoch stays untouched.
func (e *Epoch) Clone() *Epoch {
	out := *e
	out.Channels = make([][]float64, len(e.Channels))
	for i, ch := range e.Channels {
		out.Channels[i] = append([]float64(nil), ch...)
	}
	return &out
}

// DetectionResult is the outcome of scoring one epoch. It is immutable and
// carries enough identity for an external consumer to reconstruct ordering.
type DetectionResult struct {
	ResultID           string
	Identifier         string
	IsTargetHypothesis bool
	Confidence         float64
	Detected           bool
	JitterExceeded     bool
	Timestamp          float64
}
