package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// tally holds the running evidence for one identifier.
type tally struct {
	best       float64
	sum        float64
	detections int
	trials     int
}

// MemStore implements Store with a mutex-guarded map. A session tracks at
// most a few dozen identifiers, so map-plus-sort is plenty.
type MemStore struct {
	mu      sync.RWMutex
	tallies map[string]*tally
}

// NewMemStore creates an empty in-memory tally store.
func NewMemStore() *MemStore {
	return &MemStore{
		tallies: make(map[string]*tally),
	}
}

// Update records one scored trial for an identifier.
func (s *MemStore) Update(_ context.Context, identifier string, confidence float64, detected bool) error {
	if identifier == "" {
		return fmt.Errorf("update tally: %w", ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tallies[identifier]
	if !ok {
		t = &tally{}
		s.tallies[identifier] = t
	}
	t.trials++
	t.sum += confidence
	if confidence > t.best {
		t.best = confidence
	}
	if detected {
		t.detections++
	}
	return nil
}

// Rank returns the current rank and evidence for an identifier.
func (s *MemStore) Rank(_ context.Context, identifier string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tallies[identifier]; !ok {
		return Entry{}, fmt.Errorf("rank %q: %w", identifier, ErrNotFound)
	}

	entries := s.sortedLocked()
	for _, e := range entries {
		if e.Identifier == identifier {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("rank %q: %w", identifier, ErrNotFound)
}

// TopN returns the top-N entries ordered by best confidence desc.
func (s *MemStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, fmt.Errorf("top %d: %w", n, ErrInvalidLimit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sortedLocked()
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n], nil
}

// Count returns the number of identifiers tracked.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tallies)
}

// Reset clears all tallies.
func (s *MemStore) Reset(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tallies = make(map[string]*tally)
}

// sortedLocked builds the ranked entry list. Callers must hold at least the
// read lock. Ties break on detection count, then identifier for stability.
func (s *MemStore) sortedLocked() []Entry {
	entries := make([]Entry, 0, len(s.tallies))
	for id, t := range s.tallies {
		mean := 0.0
		if t.trials > 0 {
			mean = t.sum / float64(t.trials)
		}
		entries = append(entries, Entry{
			Identifier:     id,
			BestConfidence: t.best,
			MeanConfidence: mean,
			Detections:     t.detections,
			Trials:         t.trials,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BestConfidence != entries[j].BestConfidence {
			return entries[i].BestConfidence > entries[j].BestConfidence
		}
		if entries[i].Detections != entries[j].Detections {
			return entries[i].Detections > entries[j].Detections
		}
		return entries[i].Identifier < entries[j].Identifier
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
