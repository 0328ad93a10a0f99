// Package repository defines the selection tally store interface and errors.
//
// Each flashed identifier accumulates detection evidence across rounds; the
// tally ranks identifiers so a caller can pick the most likely target once
// enough rounds have run.
package repository

import "context"

// Entry represents one identifier's accumulated evidence.
type Entry struct {
	Rank           int
	Identifier     string
	BestConfidence float64
	MeanConfidence float64
	Detections     int
	Trials         int
}

// Store provides read/write access to the tally state.
type Store interface {
	// Update records one scored trial for an identifier.
	Update(ctx context.Context, identifier string, confidence float64, detected bool) error

	// Rank returns the current rank and evidence for an identifier.
	// Returns ErrNotFound if the identifier is unknown.
	Rank(ctx context.Context, identifier string) (Entry, error)

	// TopN returns the top-N entries ordered by best confidence desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of identifiers tracked.
	Count(ctx context.Context) int

	// Reset clears all tallies, typically when a new target is set.
	Reset(ctx context.Context)
}
