package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/pkg/metrics"
)

// defaultLoopbackCapacity bounds the result channel; results arrive at flash
// cadence so even small buffers absorb consumer stalls of several seconds.
const defaultLoopbackCapacity = 64

// Loopback is an in-process Publisher that hands results to a channel
// consumer. It backs the simulator CLI and tests; a production deployment
// swaps in a network-backed Publisher with the same contract.
type Loopback struct {
	mu       sync.Mutex
	results  chan model.DetectionResult
	closed   bool
	capacity int
}

// LoopbackOption applies a configuration option to the loopback transport.
type LoopbackOption func(*Loopback)

// WithCapacity sets the result channel buffer size.
func WithCapacity(n int) LoopbackOption {
	return func(l *Loopback) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// NewLoopback creates an in-process result transport.
func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{capacity: defaultLoopbackCapacity}
	for _, opt := range opts {
		opt(l)
	}
	l.results = make(chan model.DetectionResult, l.capacity)
	return l
}

// Publish delivers one result without blocking. A full buffer is a publish
// failure, not a stall: the pipeline must keep draining epochs regardless of
// consumer speed.
func (l *Loopback) Publish(_ context.Context, r model.DetectionResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("loopback publish: %w", ErrClosed)
	}
	select {
	case l.results <- r:
		metrics.RecordResultPublished()
		return nil
	default:
		return fmt.Errorf("loopback publish: %w", ErrPublishBackpressure)
	}
}

// Results exposes the consumer side of the transport.
func (l *Loopback) Results() <-chan model.DetectionResult {
	return l.results
}

// Close shuts the result channel. Publish after Close returns ErrClosed.
func (l *Loopback) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.closed = true
		close(l.results)
	}
}
