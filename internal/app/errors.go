package service

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrNoPublisher = errors.New("no result publisher configured")
	ErrNotStarted  = errors.New("pipeline not started")
)
