package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/danktime/internal/domain/leaderboard"
)

const defaultMaxLimit = 100

// LeaderboardHandler serves chat standings.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler. maxLimit below
// one falls back to 100.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit}
}

type leaderboardResponse struct {
	ChatID  int64               `json:"chat_id"`
	Total   int                 `json:"total"`
	Entries []leaderboard.Entry `json:"entries"`
}

// HandleGetLeaderboard handles GET /chats/{id}/leaderboard?limit=N.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	chatID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || chatID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid chat id", ErrBadRequest))
		return
	}

	limit := h.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid limit", ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit above %d", ErrBadRequest, h.maxLimit))
			return
		}
		limit = n
	}

	lb, err := h.deps.ChatLeaderboard(r.Context(), chatID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	entries := lb.Entries()
	writeJSON(w, http.StatusOK, leaderboardResponse{
		ChatID:  chatID,
		Total:   len(entries),
		Entries: entries[:min(limit, len(entries))],
	})
}
