package detect

import "errors"

// Sentinel kinds for detector configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid detector config")
)
