package repository

import (
	"context"
	"errors"
	"testing"
)

func TestMemStoreUpdateAndRank(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Update(ctx, "e4", 0.7, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Update(ctx, "e4", 0.5, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Update(ctx, "d5", 0.9, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := s.Rank(ctx, "e4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 2 {
		t.Errorf("expected rank 2, got %d", entry.Rank)
	}
	if entry.BestConfidence != 0.7 {
		t.Errorf("expected best 0.7, got %v", entry.BestConfidence)
	}
	if entry.MeanConfidence != 0.6 {
		t.Errorf("expected mean 0.6, got %v", entry.MeanConfidence)
	}
	if entry.Detections != 1 || entry.Trials != 2 {
		t.Errorf("unexpected counts: %+v", entry)
	}

	if _, err := s.Rank(ctx, "h8"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStoreTopN(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	s.Update(ctx, "a1", 0.3, false)
	s.Update(ctx, "b2", 0.8, true)
	s.Update(ctx, "c3", 0.5, false)

	top, err := s.TopN(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Identifier != "b2" || top[1].Identifier != "c3" {
		t.Errorf("unexpected ordering: %v %v", top[0].Identifier, top[1].Identifier)
	}

	// N beyond the population returns everything.
	all, err := s.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 entries, got %d", len(all))
	}

	if _, err := s.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestMemStoreReset(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	s.Update(ctx, "e4", 0.7, true)
	if s.Count(ctx) != 1 {
		t.Fatalf("expected count 1, got %d", s.Count(ctx))
	}

	s.Reset(ctx)
	if s.Count(ctx) != 0 {
		t.Errorf("expected empty store after reset, got %d", s.Count(ctx))
	}
	if _, err := s.Rank(ctx, "e4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after reset, got %v", err)
	}
}
