// Package service wires the upstream gateway, the aggregator and the
// leaderboard boards into the dependencies required by the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/adapters/upstream"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/aggregate"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/board"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/types"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
)

// Board names, also used as URL segments and metric labels.
const (
	BoardRound1  = "round1"
	BoardRound2  = "round2"
	BoardTeam    = "team"
	BoardOverall = "overall"
	BoardGroups  = "groups"
)

// BoardNames lists every board in display order.
var BoardNames = []string{BoardRound1, BoardRound2, BoardTeam, BoardOverall, BoardGroups}

// Service owns the five leaderboard boards.
type Service struct {
	mu sync.RWMutex

	// Upstream
	round1URL    string
	round2URL    string
	teamURL      string
	registryURL  string
	token        string
	timeout      time.Duration
	teamPolicy   upstream.TeamScorePolicy
	defaultGroup int

	// Refresh cadence
	round1Refresh time.Duration
	round2Refresh time.Duration
	liveInterval  time.Duration

	// Pagination
	perPage    int
	maxPerPage int

	// Components
	client     *upstream.Client
	aggregator *aggregate.Aggregator
	boards     map[string]board.Handle

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New builds the gateway, the aggregator and idle boards. Nothing is
// fetched until Start.
func New(opts ...Option) *Service {
	s := &Service{
		round1URL:     "http://localhost:9090/round1",
		round2URL:     "http://localhost:9090/round2",
		teamURL:       "http://localhost:9090/team",
		registryURL:   "http://localhost:9090",
		timeout:       30 * time.Second,
		teamPolicy:    upstream.Member1First,
		defaultGroup:  1,
		round1Refresh: 5 * time.Second,
		round2Refresh: 300 * time.Second,
		liveInterval:  30 * time.Second,
		perPage:       10,
		maxPerPage:    100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.client = upstream.New(s.registryURL,
		upstream.WithToken(s.token),
		upstream.WithTimeout(s.timeout),
		upstream.WithTeamScorePolicy(s.teamPolicy),
		upstream.WithDefaultGroup(s.defaultGroup),
		upstream.WithLogger(s.logger.Named("upstream")),
	)
	s.aggregator = aggregate.New(s.client,
		aggregate.Rounds{Round1URL: s.round1URL, Round2URL: s.round2URL, TeamURL: s.teamURL},
		aggregate.WithDefaultGroup(s.defaultGroup),
		aggregate.WithLogger(s.logger.Named("aggregate")),
	)

	pages := board.WithPageSizes(s.perPage, s.maxPerPage)
	boardLog := board.WithLogger(s.logger.Named("board"))
	s.boards = map[string]board.Handle{
		BoardRound1: board.New[types.RoundEntry](BoardRound1, s.aggregator.Round1,
			board.WithInterval(s.round1Refresh), pages, boardLog),
		BoardRound2: board.New[types.RoundEntry](BoardRound2, s.aggregator.Round2,
			board.WithInterval(s.round2Refresh), pages, boardLog),
		BoardTeam: board.New[types.TeamEntry](BoardTeam, s.aggregator.Teams,
			board.WithInterval(s.liveInterval), pages, boardLog),
		BoardOverall: board.New[types.OverallEntry](BoardOverall, s.aggregator.Overall,
			board.WithInterval(s.liveInterval), pages, boardLog),
		BoardGroups: board.New[types.GroupEntry](BoardGroups, s.aggregator.Groups,
			board.WithInterval(s.liveInterval), pages, boardLog),
	}
	return s
}

// Start starts every board. Each issues its first fetch immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting leaderboard service...")
	for _, name := range BoardNames {
		s.boards[name].Start(ctx)
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "leaderboard service started",
		logger.String("teamPolicy", string(s.teamPolicy)),
		logger.Duration("round1Refresh", s.round1Refresh),
		logger.Duration("round2Refresh", s.round2Refresh),
		logger.Duration("liveInterval", s.liveInterval),
	)
	return nil
}

// Stop closes every board and waits for their goroutines. A stopped
// service cannot be restarted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping leaderboard service...")
	var wg sync.WaitGroup
	for _, b := range s.boards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Close()
		}()
	}
	wg.Wait()

	s.started = false
	s.logger.Info(context.Background(), "leaderboard service stopped")
}

// Board returns the named board.
func (s *Service) Board(name string) (board.Handle, bool) {
	b, ok := s.boards[name]
	return b, ok
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	boards := make([]board.Info, 0, len(BoardNames))
	for _, name := range BoardNames {
		boards = append(boards, s.boards[name].Info())
	}

	stats := map[string]interface{}{
		"started":           s.started,
		"team_score_policy": string(s.client.TeamPolicy()),
		"default_group":     s.defaultGroup,
		"boards":            boards,
	}
	if s.started {
		stats["uptime_seconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	return stats
}
