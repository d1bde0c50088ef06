// Package aggregate joins round, team and bonus-game results into ranked
// standings.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/model"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/naming"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/types"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Source is the data the aggregator joins. upstream.Client implements it.
type Source interface {
	FetchRoundResults(ctx context.Context, roundURL string) ([]model.RoundResult, error)
	FetchTeamResults(ctx context.Context, teamURL string) ([]model.TeamResult, error)
	FetchParticipants(ctx context.Context) ([]model.Participant, error)
	FetchGames(ctx context.Context) ([]model.Game, error)
}

// Rounds names the three scoring-service rounds.
type Rounds struct {
	Round1URL string
	Round2URL string
	TeamURL   string
}

// Aggregator builds every leaderboard view from a Source.
type Aggregator struct {
	source       Source
	rounds       Rounds
	defaultGroup int
	logger       logger.Logger
}

// New creates an Aggregator reading rounds from source.
func New(source Source, rounds Rounds, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:       source,
		rounds:       rounds,
		defaultGroup: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("aggregate")
	}
	return a
}

// Round1 returns the ranked round-one board.
func (a *Aggregator) Round1(ctx context.Context) ([]types.RoundEntry, error) {
	return a.round(ctx, "round1", a.rounds.Round1URL)
}

// Round2 returns the ranked round-two board.
func (a *Aggregator) Round2(ctx context.Context) ([]types.RoundEntry, error) {
	return a.round(ctx, "round2", a.rounds.Round2URL)
}

func (a *Aggregator) round(ctx context.Context, view, roundURL string) ([]types.RoundEntry, error) {
	start := time.Now()
	results, err := a.source.FetchRoundResults(ctx, roundURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAggregateFailed, view, err)
	}
	entries := RoundStandings(results, a.defaultGroup)
	metrics.RecordAggregationDuration(view, float64(time.Since(start).Milliseconds()))
	return entries, nil
}

// Teams returns the ranked team board.
func (a *Aggregator) Teams(ctx context.Context) ([]types.TeamEntry, error) {
	start := time.Now()
	results, err := a.source.FetchTeamResults(ctx, a.rounds.TeamURL)
	if err != nil {
		return nil, fmt.Errorf("%w: team: %w", ErrAggregateFailed, err)
	}
	entries := TeamStandings(results)
	metrics.RecordAggregationDuration("team", float64(time.Since(start).Milliseconds()))
	return entries, nil
}

// Overall returns the overall board with components rounded for display.
func (a *Aggregator) Overall(ctx context.Context) ([]types.OverallEntry, error) {
	entries, err := a.AggregateOverall(ctx)
	if err != nil {
		return nil, err
	}
	return Round(entries), nil
}

// Groups returns the group board, summed from unrounded overall entries.
func (a *Aggregator) Groups(ctx context.Context) ([]types.GroupEntry, error) {
	entries, err := a.AggregateOverall(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	groups := AggregateGroups(entries)
	metrics.RecordAggregationDuration("groups", float64(time.Since(start).Milliseconds()))
	return groups, nil
}

// AggregateOverall joins both rounds, the team round and bonus games onto the
// registry participants. All five reads run concurrently; any failure fails
// the join. Round and team scores match by display name, bonus scores by
// email, and each participant appears exactly once.
func (a *Aggregator) AggregateOverall(ctx context.Context) ([]types.OverallEntry, error) {
	start := time.Now()

	var (
		round1, round2 []model.RoundResult
		teams          []model.TeamResult
		participants   []model.Participant
		games          []model.Game
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		round1, err = a.source.FetchRoundResults(gCtx, a.rounds.Round1URL)
		return err
	})
	g.Go(func() error {
		var err error
		round2, err = a.source.FetchRoundResults(gCtx, a.rounds.Round2URL)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = a.source.FetchTeamResults(gCtx, a.rounds.TeamURL)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = a.source.FetchParticipants(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		games, err = a.source.FetchGames(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.Warn(ctx, "overall aggregation failed", logger.Error(err))
		return nil, fmt.Errorf("%w: overall: %w", ErrAggregateFailed, err)
	}

	round1Scores := roundTotals(round1)
	round2Scores := roundTotals(round2)

	teamScores := make(map[string]float64, 2*len(teams))
	for _, t := range teams {
		for _, member := range []string{t.Member1Name, t.Member2Name} {
			// An empty member slot must not credit participants whose name is also empty.
			if member != "" {
				teamScores[member] = t.TotalScore
			}
		}
	}

	// Bonus by email. A member of several games keeps the last game's score.
	bonus := make(map[string]float64)
	for _, game := range games {
		for _, email := range game.MemberEmails {
			bonus[email] = game.Score
		}
	}

	entries := make([]types.OverallEntry, 0, len(participants))
	for _, p := range participants {
		name := naming.DisplayName(p.Email)
		e := types.OverallEntry{
			FullName:     name,
			HackerRankID: p.Email,
			Group:        types.GroupName(p.GroupOr(a.defaultGroup)),
			Round1Score:  round1Scores[name],
			Round2Score:  round2Scores[name],
			TeamScore:    teamScores[name],
			GameScore:    bonus[p.Email],
		}
		e.TotalScore = e.Round1Score + e.Round2Score + e.TeamScore + e.GameScore
		entries = append(entries, e)
	}
	rankOverall(entries)

	metrics.UpdateRegistryParticipants(len(participants))
	metrics.RecordAggregationDuration("overall", float64(time.Since(start).Milliseconds()))
	a.logger.Debug(ctx, "overall aggregated",
		logger.Int("participants", len(participants)),
		logger.Int("teams", len(teams)),
		logger.Int("games", len(games)),
	)
	return entries, nil
}

func roundTotals(results []model.RoundResult) map[string]float64 {
	out := make(map[string]float64, len(results))
	for _, r := range results {
		out[r.FullName] = r.TotalScore
	}
	return out
}
