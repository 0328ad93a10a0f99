package ringbuf

import (
	"errors"
	"fmt"
)

// Sentinel kinds for buffer errors.
var (
	ErrStaleSample     = errors.New("stale sample")
	ErrChannelMismatch = errors.New("channel count mismatch")
	ErrInvalidRange    = errors.New("invalid range")
)

// RangeUnavailableError reports a slice request the buffer cannot fully
// cover. CoveredFrom/CoveredTo describe the retained range and Samples the
// number of retained samples inside the requested range; all three are zero
// when the buffer is empty.
type RangeUnavailableError struct {
	From        float64
	To          float64
	CoveredFrom float64
	CoveredTo   float64
	Samples     int
}

func (e *RangeUnavailableError) Error() string {
	if e.Samples == 0 && e.CoveredFrom == 0 && e.CoveredTo == 0 {
		return fmt.Sprintf("range [%.4f, %.4f] unavailable: buffer empty", e.From, e.To)
	}
	return fmt.Sprintf("range [%.4f, %.4f] unavailable: covered [%.4f, %.4f] with %d samples",
		e.From, e.To, e.CoveredFrom, e.CoveredTo, e.Samples)
}

// HistoryLost reports whether the missing part of the range lies in the past
// relative to the retained data. Such a range can never become available, so
// the caller should abandon instead of retrying.
func (e *RangeUnavailableError) HistoryLost() bool {
	hasData := e.Samples > 0 || e.CoveredFrom != 0 || e.CoveredTo != 0
	return hasData && e.CoveredFrom > e.From
}
