package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/evoked/internal/adapters/transport"
)

// eventRequest carries one raw marker for manual injection.
type eventRequest struct {
	Marker    string  `json:"marker"`
	SourceID  string  `json:"source_id"`
	Timestamp float64 `json:"timestamp"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Marker) == "":
		return errors.New("missing marker")
	case strings.TrimSpace(e.SourceID) == "":
		return errors.New("missing source_id")
	case e.Timestamp < 0:
		return errors.New("negative timestamp")
	}
	return nil
}

type ackResponse struct {
	Status string `json:"status"`
}

// EventsHandler handles manual event injection.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ev, err := transport.DecodeEventMarker(req.Marker, req.SourceID, req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_marker", err)
		return
	}

	h.deps.SubmitEvent(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
