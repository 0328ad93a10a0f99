package clock

import "errors"

// Sentinel kinds for reconciler errors.
var (
	ErrUncalibrated = errors.New("clock uncalibrated for source")
)
