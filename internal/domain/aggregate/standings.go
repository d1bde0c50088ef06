package aggregate

import (
	"math"
	"sort"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/model"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/types"
)

// RoundStandings ranks round results by total score. Results with no group
// fall into defaultGroup.
func RoundStandings(results []model.RoundResult, defaultGroup int) []types.RoundEntry {
	entries := make([]types.RoundEntry, 0, len(results))
	for _, r := range results {
		group := r.Group
		if group <= 0 {
			group = defaultGroup
		}
		entries = append(entries, types.RoundEntry{
			FullName:     r.FullName,
			HackerRankID: r.Email,
			Group:        types.GroupName(group),
			Questions:    r.Questions,
			TotalScore:   r.TotalScore,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TotalScore > entries[j].TotalScore })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// TeamStandings ranks team results by total score.
func TeamStandings(results []model.TeamResult) []types.TeamEntry {
	entries := make([]types.TeamEntry, 0, len(results))
	for _, t := range results {
		entries = append(entries, types.TeamEntry{
			TeamName:   t.TeamName,
			Member1:    t.Member1Name,
			Member2:    t.Member2Name,
			Questions:  t.Questions,
			TotalScore: t.TotalScore,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TotalScore > entries[j].TotalScore })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// AggregateGroups sums overall entries per group. Groups start in order of
// first appearance, then sort by total; members are listed in entry order.
func AggregateGroups(entries []types.OverallEntry) []types.GroupEntry {
	index := make(map[string]int)
	var groups []types.GroupEntry
	for _, e := range entries {
		i, ok := index[e.Group]
		if !ok {
			i = len(groups)
			index[e.Group] = i
			groups = append(groups, types.GroupEntry{GroupName: e.Group, Members: []string{}})
		}
		g := &groups[i]
		g.MemberCount++
		g.Round1Score += e.Round1Score
		g.Round2Score += e.Round2Score
		g.TeamScore += e.TeamScore
		g.GameScore += e.GameScore
		g.TotalScore += e.TotalScore
		g.Members = append(g.Members, e.FullName)
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].TotalScore > groups[j].TotalScore })
	for i := range groups {
		groups[i].Rank = i + 1
	}
	return groups
}

// Round rounds each score component half-up for display and recomputes the
// totals from the rounded components, then re-ranks. The input is not modified.
func Round(entries []types.OverallEntry) []types.OverallEntry {
	out := make([]types.OverallEntry, len(entries))
	for i, e := range entries {
		e.Round1Score = halfUp(e.Round1Score)
		e.Round2Score = halfUp(e.Round2Score)
		e.TeamScore = halfUp(e.TeamScore)
		e.GameScore = halfUp(e.GameScore)
		e.TotalScore = e.Round1Score + e.Round2Score + e.TeamScore + e.GameScore
		out[i] = e
	}
	rankOverall(out)
	return out
}

func rankOverall(entries []types.OverallEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TotalScore > entries[j].TotalScore })
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

func halfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
