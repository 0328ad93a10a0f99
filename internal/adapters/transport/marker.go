package transport

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/evoked/internal/domain/model"
)

// Marker prefixes on the wire.
const (
	markerFlash    = "square_flash"
	markerTarget   = "set_target"
	markerDetected = "p300_detected"
)

// DecodeEventMarker parses a stimulus marker string into a structured event.
// Supported forms:
//
//	square_flash|square=e4
//	set_target|square=e4
//
// The timestamp is the source-clock time attached to the marker by the
// transport. A fresh event ID is minted when the wire carries none; dedupe
// and result correlation key off it.
func DecodeEventMarker(marker, sourceID string, timestamp float64) (model.StimulusEvent, error) {
	fields := strings.Split(marker, "|")
	if len(fields) < 2 {
		return model.StimulusEvent{}, fmt.Errorf("%w: %q", ErrMalformedMarker, marker)
	}

	var kind model.EventKind
	switch fields[0] {
	case markerFlash:
		kind = model.KindFlash
	case markerTarget:
		kind = model.KindTargetSet
	default:
		return model.StimulusEvent{}, fmt.Errorf("%w: unknown marker kind %q", ErrMalformedMarker, fields[0])
	}

	attrs, err := parseAttrs(fields[1:])
	if err != nil {
		return model.StimulusEvent{}, fmt.Errorf("%w: %q", ErrMalformedMarker, marker)
	}
	identifier, ok := attrs["square"]
	if !ok || identifier == "" {
		return model.StimulusEvent{}, fmt.Errorf("%w: %q carries no square", ErrMalformedMarker, marker)
	}

	id := attrs["id"]
	if id == "" {
		id = uuid.New().String()
	}

	return model.StimulusEvent{
		ID:         id,
		SourceID:   sourceID,
		Kind:       kind,
		Identifier: identifier,
		Timestamp:  timestamp,
	}, nil
}

// EncodeEventMarker renders a stimulus event back into its wire form.
func EncodeEventMarker(ev model.StimulusEvent) (string, error) {
	switch ev.Kind {
	case model.KindFlash:
		return fmt.Sprintf("%s|square=%s|id=%s", markerFlash, ev.Identifier, ev.ID), nil
	case model.KindTargetSet:
		return fmt.Sprintf("%s|square=%s|id=%s", markerTarget, ev.Identifier, ev.ID), nil
	default:
		return "", fmt.Errorf("%w: kind %q", ErrMalformedMarker, ev.Kind)
	}
}

// EncodeResultMarker renders a detection result into its wire form.
func EncodeResultMarker(r model.DetectionResult) string {
	return fmt.Sprintf("%s|square=%s|confidence=%.3f|detected=%t|target=%t",
		markerDetected, r.Identifier, r.Confidence, r.Detected, r.IsTargetHypothesis)
}

// parseAttrs splits key=value fields.
func parseAttrs(fields []string) (map[string]string, error) {
	attrs := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad attribute %q", f)
		}
		attrs[k] = v
	}
	return attrs, nil
}
