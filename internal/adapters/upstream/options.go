package upstream

import (
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	"github.com/valyala/fasthttp"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithToken sets the bearer token sent to the scoring service.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout bounds every upstream request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTeamScorePolicy sets how team scores are resolved.
func WithTeamScorePolicy(p TeamScorePolicy) Option {
	return func(c *Client) {
		if p != "" {
			c.teamPolicy = p
		}
	}
}

// WithDefaultGroup sets the group given to participants without one.
func WithDefaultGroup(group int) Option {
	return func(c *Client) {
		if group > 0 {
			c.defaultGroup = group
		}
	}
}

// WithPageLayout overrides the two candidate page requests.
func WithPageLayout(firstLimit, secondLimit, secondOffset int) Option {
	return func(c *Client) {
		if firstLimit > 0 && secondLimit > 0 && secondOffset >= 0 {
			c.firstLimit = firstLimit
			c.secondLimit = secondLimit
			c.secondOffset = secondOffset
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}
