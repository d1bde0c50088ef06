// Package types contains the ranked rows served by the leaderboard boards.
package types

import "strconv"

// GroupName formats a group number as its key, e.g. 3 -> "G3".
func GroupName(group int) string {
	return "G" + strconv.Itoa(group)
}

// RoundEntry is one participant row on a round board.
type RoundEntry struct {
	Rank         int                `json:"rank"`
	FullName     string             `json:"full_name"`
	HackerRankID string             `json:"hackerrank_id"`
	Group        string             `json:"group"`
	Questions    map[string]float64 `json:"questions"`
	TotalScore   float64            `json:"total_score"`
}

func (e RoundEntry) SearchKeys() []string { return []string{e.FullName, e.HackerRankID} }
func (e RoundEntry) GroupKey() string     { return e.Group }
func (e RoundEntry) Total() float64       { return e.TotalScore }

// TeamEntry is one team row on the team board.
type TeamEntry struct {
	Rank       int                `json:"rank"`
	TeamName   string             `json:"team_name"`
	Member1    string             `json:"member1"`
	Member2    string             `json:"member2"`
	Questions  map[string]float64 `json:"questions"`
	TotalScore float64            `json:"total_score"`
}

func (e TeamEntry) SearchKeys() []string { return []string{e.TeamName, e.Member1, e.Member2} }

// GroupKey is empty: teams span groups, so the group filter does not apply.
func (e TeamEntry) GroupKey() string { return "" }
func (e TeamEntry) Total() float64   { return e.TotalScore }

// OverallEntry combines a participant's round, team and bonus scores.
// TotalScore is always the sum of the four components.
type OverallEntry struct {
	Rank         int     `json:"rank"`
	FullName     string  `json:"full_name"`
	HackerRankID string  `json:"hackerrank_id"`
	Group        string  `json:"group"`
	Round1Score  float64 `json:"round1_score"`
	Round2Score  float64 `json:"round2_score"`
	TeamScore    float64 `json:"team_score"`
	GameScore    float64 `json:"game_score"`
	TotalScore   float64 `json:"total_score"`
}

func (e OverallEntry) SearchKeys() []string { return []string{e.FullName, e.HackerRankID} }
func (e OverallEntry) GroupKey() string     { return e.Group }
func (e OverallEntry) Total() float64       { return e.TotalScore }

// GroupEntry sums member OverallEntry components per group.
type GroupEntry struct {
	Rank        int      `json:"rank"`
	GroupName   string   `json:"group_name"`
	MemberCount int      `json:"member_count"`
	Round1Score float64  `json:"round1_score"`
	Round2Score float64  `json:"round2_score"`
	TeamScore   float64  `json:"team_score"`
	GameScore   float64  `json:"game_score"`
	TotalScore  float64  `json:"total_score"`
	Members     []string `json:"members"`
}

func (e GroupEntry) SearchKeys() []string { return []string{e.GroupName} }
func (e GroupEntry) GroupKey() string     { return e.GroupName }
func (e GroupEntry) Total() float64       { return e.TotalScore }
