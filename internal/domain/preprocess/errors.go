package preprocess

import "errors"

// Sentinel kinds for preprocessing errors.
var (
	ErrInvalidPassband = errors.New("invalid filter passband")
	ErrInvalidBaseline = errors.New("invalid baseline window")
	ErrEmptyEpoch      = errors.New("empty epoch")
)
