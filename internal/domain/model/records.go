// Package model contains domain records passed between the gateway and the aggregator.
package model

// Participant is a registry identity. Email is the unique key.
type Participant struct {
	Email string
	Group int
}

// GroupOr returns the participant's group, or def when the registry left it unset.
func (p Participant) GroupOr(def int) int {
	if p.Group > 0 {
		return p.Group
	}
	return def
}

// Team is a registry team of two members.
type Team struct {
	Name         string
	Member1Email string
	Member2Email string
}

// Game is a bonus-game result. Every listed member receives Score.
type Game struct {
	MemberEmails []string
	Score        float64
}

// RegistrySnapshot is one read of every registry collection.
type RegistrySnapshot struct {
	Participants []Participant
	Teams        []Team
	Games        []Game
}

// Candidate is one row of a scoring-service candidates page. Question keys
// are the service's raw question ids.
type Candidate struct {
	Email     string
	Score     *float64
	Questions map[string]float64
}

// ScoreOrZero returns the candidate's score, treating null as zero.
func (c Candidate) ScoreOrZero() float64 {
	if c.Score == nil {
		return 0
	}
	return *c.Score
}

// RoundResult is a registry participant joined with their round score.
// Participants without a scoring record get zero scores and no questions.
type RoundResult struct {
	Email      string
	FullName   string
	Group      int
	Questions  map[string]float64
	TotalScore float64
}

// TeamResult is a registry team joined with its members' scoring records.
type TeamResult struct {
	TeamName     string
	Member1Email string
	Member2Email string
	Member1Name  string
	Member2Name  string
	Questions    map[string]float64
	TotalScore   float64
}
