package dedupe

import (
	"context"
	"fmt"
	"testing"
)

func TestSeenAndRecord(t *testing.T) {
	d := NewInMemoryDeduper()
	ctx := context.Background()

	if d.SeenAndRecord(ctx, "ev-1") {
		t.Error("expected first sighting to be new")
	}
	if !d.SeenAndRecord(ctx, "ev-1") {
		t.Error("expected second sighting to be a duplicate")
	}
	if d.Size() != 1 {
		t.Errorf("expected size 1, got %d", d.Size())
	}
}

func TestEviction(t *testing.T) {
	d := NewInMemoryDeduper(WithMaxSize(3))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		d.SeenAndRecord(ctx, fmt.Sprintf("ev-%d", i))
	}

	// ev-0 was evicted by ev-3; it should read as new again.
	if d.SeenAndRecord(ctx, "ev-0") {
		t.Error("expected evicted id to be forgotten")
	}
	if !d.SeenAndRecord(ctx, "ev-3") {
		t.Error("expected recent id to still be tracked")
	}
	if d.Size() != 3 {
		t.Errorf("expected bounded size 3, got %d", d.Size())
	}
}
