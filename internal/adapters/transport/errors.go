package transport

import "errors"

// Sentinel kinds for transport errors.
var (
	ErrMalformedMarker     = errors.New("malformed marker")
	ErrPublishBackpressure = errors.New("publish channel full")
	ErrClosed              = errors.New("transport closed")
)
