package epoch

import "errors"

// Sentinel kinds for extraction errors.
var (
	ErrInvalidWindow  = errors.New("invalid epoch window")
	ErrJitterExceeded = errors.New("epoch sample count outside jitter tolerance")
)
