package epoch

import (
	"fmt"

	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/internal/domain/ringbuf"
	"github.com/okian/evoked/pkg/metrics"
)

// defaultJitterTolerance is the accepted deviation, in samples, between the
// observed and the expected epoch sample count.
const defaultJitterTolerance = 2

// Extractor carves fixed-geometry epochs out of a ring buffer. Resampling is
// never performed; the nominal rate is assumed constant and deviations beyond
// the jitter tolerance are flagged, not repaired.
type Extractor struct {
	buf       *ringbuf.Buffer
	rate      float64
	window    Window
	jitterTol int
}

// NewExtractor creates an extractor bound to one buffer and geometry.
func NewExtractor(buf *ringbuf.Buffer, rate float64, window Window, opts ...ExtractorOption) (*Extractor, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrInvalidWindow)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %.3f must be positive", ErrInvalidWindow, rate)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		buf:       buf,
		rate:      rate,
		window:    window,
		jitterTol: defaultJitterTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractorOption applies a configuration option to the Extractor.
type ExtractorOption func(*Extractor)

// WithJitterTolerance sets the accepted sample-count deviation.
func WithJitterTolerance(samples int) ExtractorOption {
	return func(e *Extractor) {
		if samples >= 0 {
			e.jitterTol = samples
		}
	}
}

// Window returns the extractor's geometry.
func (e *Extractor) Window() Window { return e.window }

// Extract copies the window anchored at eventLocalTime out of the buffer into
// a channel-major block. A *ringbuf.RangeUnavailableError passes through
// untouched so the synchronizer can decide between retry and abandon. When
// the observed sample count deviates from the expected count beyond the
// jitter tolerance, the epoch is still returned with JitterExceeded set
// alongside ErrJitterExceeded.
func (e *Extractor) Extract(ev model.StimulusEvent, eventLocalTime float64) (*model.Epoch, error) {
	from := eventLocalTime + e.window.Start()
	to := eventLocalTime + e.window.End()

	samples, err := e.buf.Slice(from, to)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		// Bounds cover the range but no sample falls inside it; a gap this
		// large is unrecoverable at extraction time.
		return nil, fmt.Errorf("%w: no samples in covered range [%.4f, %.4f]", ErrJitterExceeded, from, to)
	}

	channels := e.buf.Channels()
	block := make([][]float64, channels)
	for ch := range block {
		block[ch] = make([]float64, len(samples))
	}
	for i, s := range samples {
		for ch := 0; ch < channels; ch++ {
			block[ch][i] = s.Values[ch]
		}
	}

	expected := e.window.ExpectedSamples(e.rate)
	ep := &model.Epoch{
		EventID:         ev.ID,
		Identifier:      ev.Identifier,
		EventTime:       eventLocalTime,
		Start:           samples[0].Timestamp,
		SampleRate:      e.rate,
		Channels:        block,
		ExpectedSamples: expected,
	}

	metrics.RecordEpochExtracted()
	metrics.RecordEpochSamples(len(samples))

	if dev := len(samples) - expected; dev > e.jitterTol || dev < -e.jitterTol {
		ep.JitterExceeded = true
		metrics.RecordJitterExceeded()
		return ep, fmt.Errorf("%w: got %d samples, expected %d (tolerance %d)",
			ErrJitterExceeded, len(samples), expected, e.jitterTol)
	}

	return ep, nil
}
