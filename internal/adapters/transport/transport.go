// Package transport defines the boundary between the pipeline core and the
// external sample/event transport.
//
// The wire protocol belongs to the external collaborator; the core only ever
// sees decoded structures. Marker strings such as "square_flash|square=e4"
// are parsed and rendered here and nowhere else.
package transport

import (
	"context"

	"github.com/okian/evoked/internal/domain/model"
)

// Receiver is the inbound face of the pipeline: the transport pushes decoded
// samples and events into it. Both methods are non-blocking and bounded-time.
type Receiver interface {
	// IngestSample delivers one multi-channel sample stamped on the source's
	// own clock.
	IngestSample(ctx context.Context, sourceID string, s model.Sample)

	// SubmitEvent delivers one decoded stimulus event.
	SubmitEvent(ctx context.Context, ev model.StimulusEvent)
}

// Publisher is the outbound face: one call per detection result. Publish
// failures are reported by the caller but never retried; a detection is not
// re-computable once its epoch is discarded.
type Publisher interface {
	Publish(ctx context.Context, r model.DetectionResult) error
}
