package upstream

import (
	"fmt"
	"strings"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/model"
)

// TeamScorePolicy decides a team's score from its members' scoring records.
type TeamScorePolicy string

// Supported policies. Member1First is what the competition scored with:
// member 1's record wins, member 2 is the fallback.
const (
	Member1First TeamScorePolicy = "member1_first"
	MaxOfMembers TeamScorePolicy = "max"
	SumOfMembers TeamScorePolicy = "sum"
	AvgOfMembers TeamScorePolicy = "average"
)

// ParseTeamScorePolicy maps a config string to a policy.
func ParseTeamScorePolicy(s string) (TeamScorePolicy, error) {
	switch p := TeamScorePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Member1First, nil
	case Member1First, MaxOfMembers, SumOfMembers, AvgOfMembers:
		return p, nil
	default:
		return "", fmt.Errorf("unknown team score policy %q", s)
	}
}

// resolve picks the score and raw question map for a team. m1 and m2 are nil
// when that member has no usable scoring record.
func (p TeamScorePolicy) resolve(m1, m2 *model.Candidate) (float64, map[string]float64) {
	switch {
	case m1 == nil && m2 == nil:
		return 0, nil
	case m1 == nil:
		return m2.ScoreOrZero(), m2.Questions
	case m2 == nil:
		return m1.ScoreOrZero(), m1.Questions
	}

	s1, s2 := m1.ScoreOrZero(), m2.ScoreOrZero()
	switch p {
	case MaxOfMembers:
		if s2 > s1 {
			return s2, m2.Questions
		}
		return s1, m1.Questions
	case SumOfMembers:
		return s1 + s2, mergeQuestions(m1.Questions, m2.Questions, func(a, b float64) float64 { return a + b })
	case AvgOfMembers:
		return (s1 + s2) / 2, mergeQuestions(m1.Questions, m2.Questions, func(a, b float64) float64 { return (a + b) / 2 })
	default:
		return s1, m1.Questions
	}
}

// mergeQuestions combines per-question scores. A question only one member
// answered keeps that member's score combined with zero.
func mergeQuestions(a, b map[string]float64, combine func(x, y float64) float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[k] = combine(v, b[k])
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			out[k] = combine(0, v)
		}
	}
	return out
}
