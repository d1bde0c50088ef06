package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/board"
)

// parseQuery reads search, group, per_page and page. Missing numbers mean
// "use the default"; malformed or negative ones are rejected.
func parseQuery(r *http.Request) (board.Filters, int, error) {
	q := r.URL.Query()
	f := board.Filters{
		Search: strings.TrimSpace(q.Get("search")),
		Group:  strings.TrimSpace(q.Get("group")),
	}

	perPage, err := optionalInt(q.Get("per_page"), 0)
	if err != nil {
		return f, 0, fmt.Errorf("per_page: %w", err)
	}
	f.PerPage = perPage

	page, err := optionalInt(q.Get("page"), 1)
	if err != nil {
		return f, 0, fmt.Errorf("page: %w", err)
	}
	if page == 0 {
		page = 1
	}
	return f, page, nil
}

func optionalInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrBadRequest
	}
	if n < 0 {
		return 0, ErrBadRequest
	}
	return n, nil
}
