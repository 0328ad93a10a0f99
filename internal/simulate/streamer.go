package simulate

import (
	"context"
	"sync"
	"time"

	"github.com/okian/evoked/internal/adapters/transport"
	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/pkg/logger"
)

// defaultChunkSamples is the number of samples delivered per tick, matching
// typical acquisition block sizes at 250 Hz.
const defaultChunkSamples = 10

// Streamer paces generator output into a receiver in real time. Source
// timestamps can carry a constant offset and a linear skew so the clock
// reconciler has something to undo.
type Streamer struct {
	gen      *Generator
	recv     transport.Receiver
	sourceID string
	chunk    int
	offset   float64
	skew     float64

	mu sync.Mutex
	t  float64

	logger logger.Logger
}

// StreamerOption applies a configuration option to the Streamer.
type StreamerOption func(*Streamer)

// WithChunkSamples sets the number of samples per delivery.
func WithChunkSamples(n int) StreamerOption {
	return func(s *Streamer) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// WithClockError applies a constant offset (seconds) and linear skew
// (seconds per second) to the source timestamps.
func WithClockError(offset, skew float64) StreamerOption {
	return func(s *Streamer) {
		s.offset = offset
		s.skew = skew
	}
}

// WithSourceID names the simulated acquisition source.
func WithSourceID(id string) StreamerOption {
	return func(s *Streamer) {
		if id != "" {
			s.sourceID = id
		}
	}
}

// NewStreamer creates a streamer feeding recv from gen.
func NewStreamer(gen *Generator, recv transport.Receiver, opts ...StreamerOption) *Streamer {
	s := &Streamer{
		gen:      gen,
		recv:     recv,
		sourceID: "sim-1",
		chunk:    defaultChunkSamples,
		logger:   logger.Get().Named("streamer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceID returns the simulated source name.
func (s *Streamer) SourceID() string { return s.sourceID }

// SessionTime returns the session time of the last emitted sample.
func (s *Streamer) SessionTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

// SourceTime maps a session time onto the skewed source clock.
func (s *Streamer) SourceTime(sessionTime float64) float64 {
	return s.offset + sessionTime*(1+s.skew)
}

// Run streams chunks until ctx is canceled.
func (s *Streamer) Run(ctx context.Context) {
	rate := s.gen.Rate()
	interval := time.Duration(float64(s.chunk) / rate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "streaming started",
		logger.String("source", s.sourceID),
		logger.Float64("rate", rate),
		logger.Int("chunk", s.chunk),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "streaming stopped", logger.String("source", s.sourceID))
			return
		case <-ticker.C:
			s.emitChunk(ctx, rate)
		}
	}
}

// emitChunk advances the session clock by one chunk and delivers it.
func (s *Streamer) emitChunk(ctx context.Context, rate float64) {
	for i := 0; i < s.chunk; i++ {
		s.mu.Lock()
		s.t += 1 / rate
		t := s.t
		s.mu.Unlock()

		values := s.gen.Sample(t)
		s.recv.IngestSample(ctx, s.sourceID, model.Sample{
			Timestamp: s.SourceTime(t),
			Values:    values,
		})
	}
}
