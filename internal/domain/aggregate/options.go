package aggregate

import "github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithDefaultGroup sets the group used for participants the registry left ungrouped.
func WithDefaultGroup(group int) Option {
	return func(a *Aggregator) {
		if group > 0 {
			a.defaultGroup = group
		}
	}
}

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
