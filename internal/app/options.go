package service

import (
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/adapters/upstream"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRoundURLs sets the scoring-service URLs of the three rounds.
func WithRoundURLs(round1, round2, team string) Option {
	return func(s *Service) {
		if round1 != "" {
			s.round1URL = round1
		}
		if round2 != "" {
			s.round2URL = round2
		}
		if team != "" {
			s.teamURL = team
		}
	}
}

// WithRegistryURL sets the participant registry base URL.
func WithRegistryURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.registryURL = u
		}
	}
}

// WithToken sets the scoring-service bearer token.
func WithToken(token string) Option {
	return func(s *Service) {
		s.token = token
	}
}

// WithRequestTimeout bounds every upstream request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRefreshIntervals sets the round-one, round-two and live board intervals.
func WithRefreshIntervals(round1, round2, live time.Duration) Option {
	return func(s *Service) {
		if round1 > 0 {
			s.round1Refresh = round1
		}
		if round2 > 0 {
			s.round2Refresh = round2
		}
		if live > 0 {
			s.liveInterval = live
		}
	}
}

// WithPageSizes sets the default and maximum rows per page.
func WithPageSizes(perPage, maxPerPage int) Option {
	return func(s *Service) {
		if perPage > 0 && maxPerPage >= perPage {
			s.perPage = perPage
			s.maxPerPage = maxPerPage
		}
	}
}

// WithTeamScorePolicy sets how team scores are resolved.
func WithTeamScorePolicy(p upstream.TeamScorePolicy) Option {
	return func(s *Service) {
		if p != "" {
			s.teamPolicy = p
		}
	}
}

// WithDefaultGroup sets the group for participants the registry left ungrouped.
func WithDefaultGroup(group int) Option {
	return func(s *Service) {
		if group > 0 {
			s.defaultGroup = group
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
