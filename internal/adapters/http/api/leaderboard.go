package api

import (
	"errors"
	"net/http"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/board"
)

// LeaderboardHandler serves board pages and manual refreshes.
type LeaderboardHandler struct {
	deps Dependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard/{board}?search=&group=&per_page=&page=.
//
// A board with no data yet answers 503 loading, one whose first load failed
// answers 502 upstream_failed. Once data exists it is served with 200 even
// while a refresh is running or after a refresh failed (stale).
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"

	b, ok := h.deps.Board(r.PathValue("board"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrUnknownBoard))
		return
	}
	filters, page, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}

	info, view := b.Query(filters, page)
	switch info.Status {
	case board.StatusIdle, board.StatusLoading:
		writeError(w, http.StatusServiceUnavailable, "loading", NewKind(op, ErrLoading))
	case board.StatusFailed:
		err := ErrUpstreamFailed
		if info.Error != "" {
			err = errors.New(info.Error)
		}
		writeError(w, http.StatusBadGateway, "upstream_failed", Wrap(op, err))
	default:
		writeJSON(w, http.StatusOK, view)
	}
}

// HandleRefresh handles POST /leaderboard/{board}/refresh. The refresh runs
// in the background; the response is the board status when it was queued.
func (h *LeaderboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_leaderboard"

	b, ok := h.deps.Board(r.PathValue("board"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrUnknownBoard))
		return
	}
	writeJSON(w, http.StatusAccepted, b.Trigger())
}
