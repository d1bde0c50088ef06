// Package upstream is the gateway to the scoring service and the participant
// registry. It validates every payload at the boundary and returns domain
// records, or an error wrapping one of the package sentinels.
package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/metrics"
	"github.com/valyala/fasthttp"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultFirstLimit   = 100
	defaultSecondLimit  = 99
	defaultSecondOffset = 100
	defaultGroup        = 1
	maxConnsPerHost     = 100
)

// Metric source labels.
const (
	sourceCandidates   = "scoring_candidates"
	sourceMetadata     = "scoring_metadata"
	sourceParticipants = "registry_participants"
	sourceTeams        = "registry_teams"
	sourceGames        = "registry_games"
)

// Client reads scoring and registry data over HTTP.
type Client struct {
	http         *fasthttp.Client
	registryURL  string
	token        string
	timeout      time.Duration
	teamPolicy   TeamScorePolicy
	defaultGroup int

	firstLimit   int
	secondLimit  int
	secondOffset int

	logger logger.Logger
}

// New creates a Client reading the registry at registryURL.
func New(registryURL string, opts ...Option) *Client {
	c := &Client{
		registryURL:  strings.TrimRight(registryURL, "/"),
		timeout:      defaultTimeout,
		teamPolicy:   Member1First,
		defaultGroup: defaultGroup,
		firstLimit:   defaultFirstLimit,
		secondLimit:  defaultSecondLimit,
		secondOffset: defaultSecondOffset,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("upstream")
	}
	if c.http == nil {
		// Requests past the connection cap queue for a free connection
		// instead of failing with ErrNoFreeConns.
		c.http = &fasthttp.Client{
			Name:                "cfcc-leaderboard",
			MaxConnsPerHost:     maxConnsPerHost,
			MaxConnWaitTimeout:  c.timeout,
			ReadTimeout:         c.timeout,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: time.Minute,
		}
	}
	return c
}

// TeamPolicy returns the configured team score policy.
func (c *Client) TeamPolicy() TeamScorePolicy { return c.teamPolicy }

// get issues one GET and returns a copy of the body of a 2xx response.
func (c *Client) get(ctx context.Context, source, rawURL string, auth bool) ([]byte, error) {
	start := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		metrics.RecordUpstreamRequest(source, outcome, float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		outcome = metrics.OutcomeTransport
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, source, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	deadline := start.Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		outcome = metrics.OutcomeTransport
		c.logger.Error(ctx, "upstream request failed",
			logger.String("source", source),
			logger.String("url", redact(rawURL)),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, source, err)
	}

	if code := resp.StatusCode(); code < fasthttp.StatusOK || code >= fasthttp.StatusMultipleChoices {
		outcome = metrics.OutcomeStatus
		c.logger.Error(ctx, "upstream returned error status",
			logger.String("source", source),
			logger.String("url", redact(rawURL)),
			logger.Int("status", code),
		)
		return nil, fmt.Errorf("%w: %s: status %d", ErrUpstreamStatus, source, code)
	}

	return append([]byte(nil), resp.Body()...), nil
}

// decodeFailed logs and counts a body that did not match its contract.
func (c *Client) decodeFailed(ctx context.Context, source string, err error) error {
	metrics.RecordUpstreamRequest(source, metrics.OutcomeMalformed, 0)
	c.logger.Error(ctx, "malformed upstream response", logger.String("source", source), logger.Error(err))
	return malformed(source, err)
}

// endpointURL joins base and path, keeping any query already on base.
func endpointURL(base, path string, query url.Values) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: empty base url", ErrInvalidEndpoint)
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redact drops query strings from logged URLs; registries often carry auth there.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
