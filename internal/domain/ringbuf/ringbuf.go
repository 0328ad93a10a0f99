// Package ringbuf implements the timestamp-indexed sample ring buffer.
//
// The buffer is written by exactly one ingestion path and read concurrently
// by the extraction path. Reads copy slice headers out under a narrow read
// lock; samples are immutable once ingested, so the copies stay consistent
// without blocking the writer.
package ringbuf

import (
	"fmt"
	"sort"
	"sync"

	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/pkg/metrics"
)

// Default buffer configuration constants.
const (
	defaultRetention   = 5.0  // seconds
	defaultTolerance   = 0.05 // seconds of accepted out-of-order arrival
	defaultNominalRate = 250.0
	compactionSlack    = 2 // compact when head exceeds half the backing array
)

// Buffer holds the most recent retention window of multi-channel samples,
// ordered by non-decreasing timestamp.
type Buffer struct {
	mu        sync.RWMutex
	samples   []model.Sample
	head      int // index of the oldest retained sample
	channels  int
	rate      float64
	retention float64
	tolerance float64
	notify    chan struct{}
}

// New creates a buffer with configuration options.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		channels:  1,
		rate:      defaultNominalRate,
		retention: defaultRetention,
		tolerance: defaultTolerance,
		notify:    make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(b)
	}

	// Preallocate roughly one retention window of samples.
	b.samples = make([]model.Sample, 0, int(b.retention*b.rate))

	return b
}

// Ingest appends a sample and evicts samples older than the retention window.
// Samples arriving slightly out of order (within the configured tolerance)
// are inserted at their timestamp position; samples older than the oldest
// retained sample by more than the tolerance are dropped with ErrStaleSample.
func (b *Buffer) Ingest(s model.Sample) error {
	if len(s.Values) != b.channels {
		return fmt.Errorf("%w: got %d values, want %d", ErrChannelMismatch, len(s.Values), b.channels)
	}

	b.mu.Lock()

	n := len(b.samples)
	switch {
	case n == b.head:
		b.samples = append(b.samples, s)
	case s.Timestamp >= b.samples[n-1].Timestamp:
		b.samples = append(b.samples, s)
	default:
		oldest := b.samples[b.head].Timestamp
		if s.Timestamp < oldest-b.tolerance {
			b.mu.Unlock()
			metrics.RecordSampleStale()
			return fmt.Errorf("%w: sample at %.4fs precedes oldest retained %.4fs beyond tolerance %.3fs",
				ErrStaleSample, s.Timestamp, oldest, b.tolerance)
		}
		b.insertSorted(s)
	}

	b.evict()
	span, count := b.spanLocked()
	b.mu.Unlock()

	metrics.RecordSampleIngested()
	metrics.UpdateBufferSpan(span)
	metrics.UpdateBufferSamples(count)

	// Coalesced readiness signal for the poll loop.
	select {
	case b.notify <- struct{}{}:
	default:
	}

	return nil
}

// insertSorted places a slightly late sample at its timestamp position.
// The scan runs from the tail; tolerated out-of-order arrivals are near it.
func (b *Buffer) insertSorted(s model.Sample) {
	i := len(b.samples)
	for i > b.head && b.samples[i-1].Timestamp > s.Timestamp {
		i--
	}
	b.samples = append(b.samples, model.Sample{})
	copy(b.samples[i+1:], b.samples[i:])
	b.samples[i] = s
}

// evict advances head past samples older than newest-retention and compacts
// the backing array once the dead prefix outgrows the live part.
func (b *Buffer) evict() {
	n := len(b.samples)
	if n == b.head {
		return
	}
	cutoff := b.samples[n-1].Timestamp - b.retention
	for b.head < n && b.samples[b.head].Timestamp < cutoff {
		b.samples[b.head] = model.Sample{}
		b.head++
	}
	if b.head > 0 && b.head*compactionSlack > len(b.samples) {
		live := copy(b.samples, b.samples[b.head:])
		for i := live; i < len(b.samples); i++ {
			b.samples[i] = model.Sample{}
		}
		b.samples = b.samples[:live]
		b.head = 0
	}
}

// Slice returns the contiguous ordered subsequence of samples with
// from <= timestamp <= to. When the buffer does not fully cover the requested
// range it returns a *RangeUnavailableError describing the covered range, so
// the caller can distinguish "not enough data yet" from "data lost".
func (b *Buffer) Slice(from, to float64) ([]model.Sample, error) {
	if from > to {
		return nil, fmt.Errorf("%w: from %.4f after to %.4f", ErrInvalidRange, from, to)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	live := b.samples[b.head:]
	if len(live) == 0 {
		return nil, &RangeUnavailableError{From: from, To: to}
	}

	oldest := live[0].Timestamp
	newest := live[len(live)-1].Timestamp

	lo := sort.Search(len(live), func(i int) bool { return live[i].Timestamp >= from })
	hi := sort.Search(len(live), func(i int) bool { return live[i].Timestamp > to })

	if oldest > from || newest < to {
		return nil, &RangeUnavailableError{
			From:        from,
			To:          to,
			CoveredFrom: oldest,
			CoveredTo:   newest,
			Samples:     hi - lo,
		}
	}

	out := make([]model.Sample, hi-lo)
	copy(out, live[lo:hi])
	return out, nil
}

// Bounds reports the oldest and newest retained timestamps and the retained
// sample count. ok is false while the buffer is empty.
func (b *Buffer) Bounds() (oldest, newest float64, count int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	live := b.samples[b.head:]
	if len(live) == 0 {
		return 0, 0, 0, false
	}
	return live[0].Timestamp, live[len(live)-1].Timestamp, len(live), true
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples) - b.head
}

// Channels returns the configured channel count.
func (b *Buffer) Channels() int {
	return b.channels
}

// Notify returns a channel that receives a coalesced signal after each
// ingested sample. The synchronizer polls readiness off this channel instead
// of sleeping.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}

// spanLocked returns the covered span and count; callers hold the lock.
func (b *Buffer) spanLocked() (float64, int) {
	live := b.samples[b.head:]
	if len(live) == 0 {
		return 0, 0
	}
	return live[len(live)-1].Timestamp - live[0].Timestamp, len(live)
}
