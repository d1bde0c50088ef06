package board

import (
	"strings"
	"unicode"
)

// Searchable is a ranked row a board can filter.
type Searchable interface {
	SearchKeys() []string
	GroupKey() string
	Total() float64
}

// Filters narrows a board view.
type Filters struct {
	Search  string `json:"search"`
	Group   string `json:"group"`
	PerPage int    `json:"per_page"`
}

// Pagination describes the page being served.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	HasMore     bool `json:"has_more"`
}

// Summary holds statistics over a filtered result set. CompletionRate is the
// percentage of rows with a positive total.
type Summary struct {
	TotalParticipants int     `json:"total_participants"`
	AverageScore      float64 `json:"average_score"`
	HighestScore      float64 `json:"highest_score"`
	LowestScore       float64 `json:"lowest_score"`
	CompletionRate    float64 `json:"completion_rate"`
}

// Filter keeps rows whose search keys contain f.Search (case-insensitive)
// and whose group matches f.Group. Rows keep their unfiltered ranks. Rows
// without a group key are never excluded by the group filter.
func Filter[T Searchable](entries []T, f Filters) []T {
	search := strings.ToLower(f.Search)
	group := normalizeGroup(f.Group)

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if group != "" {
			if key := e.GroupKey(); key != "" && !strings.EqualFold(key, group) {
				continue
			}
		}
		if search != "" && !matches(e.SearchKeys(), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matches(keys []string, search string) bool {
	for _, k := range keys {
		if strings.Contains(strings.ToLower(k), search) {
			return true
		}
	}
	return false
}

// normalizeGroup maps "", "All" and "all" to no filter and a bare group
// number to its key.
func normalizeGroup(g string) string {
	g = strings.TrimSpace(g)
	if g == "" || strings.EqualFold(g, "all") {
		return ""
	}
	if strings.IndexFunc(g, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return "G" + g
	}
	return g
}

// Paginate returns the requested page of entries. perPage must be positive.
// The page is clamped to [1, TotalPages]; an empty set has one empty page.
func Paginate[T any](entries []T, page, perPage int) ([]T, Pagination) {
	totalPages := max(1, (len(entries)+perPage-1)/perPage)
	page = clamp(page, 1, totalPages)

	start := min((page-1)*perPage, len(entries))
	end := min(start+perPage, len(entries))
	return entries[start:end], Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		HasMore:     page < totalPages,
	}
}

// Summarize computes statistics over entries.
func Summarize[T Searchable](entries []T) Summary {
	if len(entries) == 0 {
		return Summary{}
	}
	s := Summary{
		TotalParticipants: len(entries),
		HighestScore:      entries[0].Total(),
		LowestScore:       entries[0].Total(),
	}
	var sum float64
	var completed int
	for _, e := range entries {
		t := e.Total()
		sum += t
		s.HighestScore = max(s.HighestScore, t)
		s.LowestScore = min(s.LowestScore, t)
		if t > 0 {
			completed++
		}
	}
	s.AverageScore = sum / float64(len(entries))
	s.CompletionRate = float64(completed) / float64(len(entries)) * 100
	return s
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
