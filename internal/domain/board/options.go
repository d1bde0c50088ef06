package board

import (
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
)

const (
	defaultInterval   = 30 * time.Second
	defaultPerPage    = 10
	defaultMaxPerPage = 100
)

// Option applies a configuration option to a Board.
type Option func(*settings)

type settings struct {
	interval   time.Duration
	perPage    int
	maxPerPage int
	logger     logger.Logger
}

// WithInterval sets how often the board refetches.
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPageSizes sets the default and maximum rows per page.
func WithPageSizes(perPage, maxPerPage int) Option {
	return func(s *settings) {
		if perPage > 0 && maxPerPage >= perPage {
			s.perPage = perPage
			s.maxPerPage = maxPerPage
		}
	}
}

// WithLogger sets a custom logger for the board.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
