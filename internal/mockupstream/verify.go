package mockupstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// ErrInconsistent marks a leaderboard that does not match the fixtures.
var ErrInconsistent = errors.New("leaderboard inconsistent")

type overallEntry struct {
	Rank       int     `json:"rank"`
	FullName   string  `json:"full_name"`
	Round1     float64 `json:"round1_score"`
	Round2     float64 `json:"round2_score"`
	Team       float64 `json:"team_score"`
	Game       float64 `json:"game_score"`
	TotalScore float64 `json:"total_score"`
}

type overallPage struct {
	Status       string         `json:"status"`
	TotalResults int            `json:"total_results"`
	Entries      []overallEntry `json:"entries"`
}

// Report summarizes a successful verification.
type Report struct {
	Entries     int
	Leader      string
	LeaderTotal float64
}

// Verify fetches the overall board from a leaderboard service backed by f and
// checks that it lists every participant, ranks are 1..N, totals add up and
// the order is non-increasing.
func Verify(ctx context.Context, baseURL string, f Fixtures, timeout time.Duration) (Report, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	u := strings.TrimRight(baseURL, "/") + fmt.Sprintf("/leaderboard/overall?per_page=%d", max(len(f.Participants), 1))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Report{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("get overall board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("get overall board: status %d", resp.StatusCode)
	}
	var page overallPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Report{}, fmt.Errorf("decode overall board: %w", err)
	}
	return check(page, f)
}

func check(page overallPage, f Fixtures) (Report, error) {
	if page.TotalResults != len(f.Participants) {
		return Report{}, fmt.Errorf("%w: %d entries, want %d", ErrInconsistent, page.TotalResults, len(f.Participants))
	}
	for i, e := range page.Entries {
		if e.Rank != i+1 {
			return Report{}, fmt.Errorf("%w: entry %d has rank %d", ErrInconsistent, i, e.Rank)
		}
		if sum := e.Round1 + e.Round2 + e.Team + e.Game; math.Abs(sum-e.TotalScore) > 1e-9 {
			return Report{}, fmt.Errorf("%w: %s total %.2f, components sum to %.2f", ErrInconsistent, e.FullName, e.TotalScore, sum)
		}
		if i > 0 && e.TotalScore > page.Entries[i-1].TotalScore {
			return Report{}, fmt.Errorf("%w: entry %d outranks entry %d", ErrInconsistent, i, i-1)
		}
	}

	r := Report{Entries: len(page.Entries)}
	if len(page.Entries) > 0 {
		r.Leader = page.Entries[0].FullName
		r.LeaderTotal = page.Entries[0].TotalScore
	}
	return r, nil
}
