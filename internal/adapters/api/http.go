// Package api declares HTTP contracts and route registration helpers.
//
// The HTTP surface is operational only: health, metrics, stats, and the
// current ranking. Sample and event flow belongs to the transport layer; the
// events route exists for manual marker injection during bring-up.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/evoked/internal/adapters/repository"
	"github.com/okian/evoked/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SubmitEvent pushes a decoded stimulus event into the pipeline.
	SubmitEvent(ctx context.Context, ev model.StimulusEvent)

	// Read operations expose tally data.
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Rank(ctx context.Context, identifier string) (repository.Entry, error)
	Target() string
}

// Server wires HTTP routes for the operational API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	eventsHandler  *EventsHandler
	rankingHandler *RankingHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		eventsHandler:  NewEventsHandler(deps),
		rankingHandler: NewRankingHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", s.statsHandler.HandleStats)
	mux.HandleFunc("/events", s.eventsHandler.HandlePostEvent)
	mux.HandleFunc("/ranking", s.rankingHandler.HandleGetRanking)
	mux.HandleFunc("/ranking/", s.rankingHandler.HandleGetRank)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
