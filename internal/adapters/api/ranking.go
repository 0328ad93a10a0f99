package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/evoked/internal/adapters/repository"
)

// defaultRankingLimit caps GET /ranking when no limit is given.
const defaultRankingLimit = 10

// rankingResponse is the read shape for GET /ranking.
type rankingResponse struct {
	Target  string             `json:"target,omitempty"`
	Entries []repository.Entry `json:"entries"`
}

// RankingHandler handles tally read requests.
type RankingHandler struct {
	deps Dependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps Dependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// HandleGetRanking handles GET /ranking?limit=N requests.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := defaultRankingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_limit", err)
			return
		}
		limit = n
	}

	entries, err := h.deps.TopN(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tally_error", err)
		return
	}

	writeJSON(w, http.StatusOK, rankingResponse{
		Target:  h.deps.Target(),
		Entries: entries,
	})
}

// HandleGetRank handles GET /ranking/{identifier} requests.
func (h *RankingHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	identifier := strings.TrimPrefix(r.URL.Path, "/ranking/")
	if identifier == "" || strings.Contains(identifier, "/") {
		writeError(w, http.StatusBadRequest, "bad_identifier", nil)
		return
	}

	entry, err := h.deps.Rank(r.Context(), identifier)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "tally_error", err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
