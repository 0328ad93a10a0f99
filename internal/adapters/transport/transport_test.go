package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/evoked/internal/domain/model"
)

func TestDecodeEventMarker(t *testing.T) {
	ev, err := DecodeEventMarker("square_flash|square=e4", "sim-1", 12.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != model.KindFlash {
		t.Errorf("expected flash kind, got %q", ev.Kind)
	}
	if ev.Identifier != "e4" {
		t.Errorf("expected identifier e4, got %q", ev.Identifier)
	}
	if ev.SourceID != "sim-1" || ev.Timestamp != 12.5 {
		t.Errorf("source metadata not carried: %+v", ev)
	}
	if ev.ID == "" {
		t.Error("expected a minted event ID")
	}

	ev, err = DecodeEventMarker("set_target|square=a1|id=ev-7", "sim-1", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != model.KindTargetSet {
		t.Errorf("expected target_set kind, got %q", ev.Kind)
	}
	if ev.ID != "ev-7" {
		t.Errorf("expected wire-carried ID to survive, got %q", ev.ID)
	}
}

func TestDecodeEventMarkerRejectsGarbage(t *testing.T) {
	for _, marker := range []string{
		"",
		"square_flash",
		"square_flash|row=3",
		"square_flash|square=",
		"unknown_kind|square=e4",
		"square_flash|=e4",
	} {
		if _, err := DecodeEventMarker(marker, "sim-1", 0); !errors.Is(err, ErrMalformedMarker) {
			t.Errorf("marker %q: expected ErrMalformedMarker, got %v", marker, err)
		}
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	in := model.StimulusEvent{
		ID:         "ev-42",
		Kind:       model.KindFlash,
		Identifier: "h8",
	}
	wire, err := EncodeEventMarker(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := DecodeEventMarker(wire, "src", 3.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != in.ID || out.Kind != in.Kind || out.Identifier != in.Identifier {
		t.Errorf("round trip mismatch: in %+v out %+v", in, out)
	}
}

func TestEncodeResultMarker(t *testing.T) {
	got := EncodeResultMarker(model.DetectionResult{
		Identifier:         "e4",
		Confidence:         0.8125,
		Detected:           true,
		IsTargetHypothesis: true,
	})
	want := "p300_detected|square=e4|confidence=0.813|detected=true|target=true"
	if got != want {
		t.Errorf("expected %q, got %q", got, want)
	}
}

func TestLoopbackPublish(t *testing.T) {
	l := NewLoopback(WithCapacity(2))
	ctx := context.Background()

	if err := l.Publish(ctx, model.DetectionResult{ResultID: "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Publish(ctx, model.DetectionResult{ResultID: "r2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Buffer is full; the third publish must fail fast, not block.
	if err := l.Publish(ctx, model.DetectionResult{ResultID: "r3"}); !errors.Is(err, ErrPublishBackpressure) {
		t.Errorf("expected ErrPublishBackpressure, got %v", err)
	}

	got := <-l.Results()
	if got.ResultID != "r1" {
		t.Errorf("expected r1 first, got %q", got.ResultID)
	}

	l.Close()
	if err := l.Publish(ctx, model.DetectionResult{ResultID: "r4"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Drain: r2 then channel close.
	if got := <-l.Results(); got.ResultID != "r2" {
		t.Errorf("expected r2, got %q", got.ResultID)
	}
	if _, ok := <-l.Results(); ok {
		t.Error("expected closed channel after drain")
	}
}
