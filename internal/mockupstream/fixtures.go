// Package mockupstream serves fixture data with the scoring service and
// registry wire contracts, for local development and tests.
package mockupstream

import (
	"math"
)

// Wire shapes, as the real services return them.

// Candidate is one scoring-service row.
type Candidate struct {
	Email     string             `json:"email"`
	Score     *float64           `json:"score"`
	Questions map[string]float64 `json:"questions"`
}

// Round is one scoring-service round: its question ids and candidate rows.
type Round struct {
	Name        string
	QuestionIDs []string
	Candidates  []Candidate
}

// Participant is a registry participant document.
type Participant struct {
	Email string `json:"email"`
	Group int    `json:"group"`
}

// Team is a registry team document.
type Team struct {
	Name         string `json:"name"`
	Member1Email string `json:"member_1_email"`
	Member2Email string `json:"member_2_email"`
}

// Game is a registry bonus-game document.
type Game struct {
	Member1Email string  `json:"member_1_email,omitempty"`
	Member2Email string  `json:"member_2_email,omitempty"`
	Member3Email string  `json:"member_3_email,omitempty"`
	Member4Email string  `json:"member_4_email,omitempty"`
	Score        float64 `json:"score"`
}

// Emails lists the non-empty member slots.
func (g Game) Emails() []string {
	var out []string
	for _, e := range []string{g.Member1Email, g.Member2Email, g.Member3Email, g.Member4Email} {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Fixtures is everything the mock serves. Rounds are keyed by URL segment.
type Fixtures struct {
	Rounds       map[string]Round
	Participants []Participant
	Teams        []Team
	Games        []Game
}

// Round URL segments used by DefaultFixtures.
const (
	RoundOne  = "round1"
	RoundTwo  = "round2"
	TeamRound = "team"
)

const emailDomain = "@student.cadt.edu.kh"

var participantLocals = []string{
	"john.doe", "jane.smith", "bob.johnson", "alice.brown", "charlie.wilson",
	"diana.davis", "edward.miller", "fiona.garcia", "george.martinez", "helen.anderson",
	"ivan.taylor", "julia.thomas", "kevin.jackson", "lisa.white", "mike.harris",
	"nancy.martin", "oscar.thompson", "paula.garcia", "quinn.rodriguez", "rachel.lewis",
}

var teamNames = []string{
	"Code Warriors", "Byte Busters", "Algorithm Aces", "Debug Squad", "Stack Overflow",
	"Null Pointers", "Binary Beasts", "Syntax Heroes", "Loop Legends", "Git Masters",
}

var questionIDs = []string{
	"q1_basic_array",
	"q2_string_manipulation",
	"q3_sorting_algorithm",
	"q4_data_structures",
	"q5_dynamic_programming",
	"q6_graph_theory",
}

var gameScores = []float64{50, 75, 25, 100, 60}

// Difficulty bases for generated scores.
const (
	Easy   = 80.0
	Medium = 60.0
	Hard   = 40.0

	scoreVariance = 30.0
)

// DefaultFixtures returns 20 participants in groups 1..3, 10 two-person
// teams, 5 bonus games and three rounds of deterministic scores.
func DefaultFixtures() Fixtures {
	f := Fixtures{Rounds: make(map[string]Round, 3)}

	for i, local := range participantLocals {
		f.Participants = append(f.Participants, Participant{Email: local + emailDomain, Group: i%3 + 1})
	}
	for i, name := range teamNames {
		f.Teams = append(f.Teams, Team{
			Name:         name,
			Member1Email: f.Participants[2*i].Email,
			Member2Email: f.Participants[2*i+1].Email,
		})
	}
	for i, score := range gameScores {
		f.Games = append(f.Games, Game{
			Member1Email: f.Participants[4*i].Email,
			Member2Email: f.Participants[4*i+1].Email,
			Member3Email: f.Participants[4*i+2].Email,
			Member4Email: f.Participants[4*i+3].Email,
			Score:        score,
		})
	}

	f.Rounds[RoundOne] = generateRound("Round 1", f.Participants, Easy)
	f.Rounds[RoundTwo] = generateRound("Round 2", f.Participants, Hard)

	var members []Participant
	for _, t := range f.Teams {
		members = append(members, Participant{Email: t.Member1Email}, Participant{Email: t.Member2Email})
	}
	f.Rounds[TeamRound] = generateRound("Team Round", members, Medium)

	return f
}

func generateRound(name string, participants []Participant, base float64) Round {
	r := Round{Name: name, QuestionIDs: append([]string(nil), questionIDs...)}
	for _, p := range participants {
		questions := GenerateScores(p.Email, base)
		total := 0.0
		for _, v := range questions {
			total += v
		}
		r.Candidates = append(r.Candidates, Candidate{Email: p.Email, Score: &total, Questions: questions})
	}
	return r
}

// GenerateScores derives stable per-question scores from the email's first
// byte, so every run serves the same numbers.
func GenerateScores(email string, base float64) map[string]float64 {
	scores := make(map[string]float64, len(questionIDs))
	first := 0
	if email != "" {
		first = int(email[0])
	}
	for i, id := range questionIDs {
		factor := float64((first+i)%100) / 100
		s := math.Max(0, math.Min(100, base+(factor-0.5)*scoreVariance))
		scores[id] = math.Floor(s + 0.5)
	}
	return scores
}
