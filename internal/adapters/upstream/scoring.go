package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/model"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/naming"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

type candidatesPage struct {
	Data *[]candidateRow `json:"data"`
}

type candidateRow struct {
	Email     string                     `json:"email"`
	Score     number                     `json:"score"`
	Questions map[string]json.RawMessage `json:"questions"`
}

type roundMetadata struct {
	Questions json.RawMessage `json:"questions"`
}

// FetchRoundResults returns one RoundResult per registry participant for the
// round served at roundURL. Participants without a scoring record get a zero
// entry; scoring rows for unknown emails are dropped.
func (c *Client) FetchRoundResults(ctx context.Context, roundURL string) ([]model.RoundResult, error) {
	var (
		candidates   []model.Candidate
		labels       map[string]string
		participants []model.Participant
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = c.fetchCandidates(gCtx, roundURL)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = c.fetchQuestionLabels(gCtx, roundURL)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = c.FetchParticipants(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch round results: %w", err)
	}

	// First row per email wins.
	byEmail := make(map[string]*model.Candidate, len(candidates))
	for i := range candidates {
		if _, ok := byEmail[candidates[i].Email]; !ok {
			byEmail[candidates[i].Email] = &candidates[i]
		}
	}

	results := make([]model.RoundResult, 0, len(participants))
	for _, p := range participants {
		r := model.RoundResult{
			Email:     p.Email,
			FullName:  naming.DisplayName(p.Email),
			Group:     p.GroupOr(c.defaultGroup),
			Questions: map[string]float64{},
		}
		if cand, ok := byEmail[p.Email]; ok {
			r.TotalScore = cand.ScoreOrZero()
			r.Questions = relabel(cand.Questions, labels)
		}
		results = append(results, r)
	}

	c.logger.Debug(ctx, "round results fetched",
		logger.String("round", redact(roundURL)),
		logger.Int("participants", len(participants)),
		logger.Int("candidates", len(candidates)),
	)
	return results, nil
}

// FetchTeamResults returns one TeamResult per registry team for the team
// round served at teamURL, resolving member scores with the team policy.
func (c *Client) FetchTeamResults(ctx context.Context, teamURL string) ([]model.TeamResult, error) {
	var (
		candidates []model.Candidate
		labels     map[string]string
		teams      []model.Team
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = c.fetchCandidates(gCtx, teamURL)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = c.fetchQuestionLabels(gCtx, teamURL)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = c.FetchTeams(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch team results: %w", err)
	}

	// Rows without an email or score are unusable; later rows override earlier ones.
	byEmail := make(map[string]*model.Candidate, len(candidates))
	for i := range candidates {
		if candidates[i].Email == "" || candidates[i].Score == nil {
			continue
		}
		byEmail[candidates[i].Email] = &candidates[i]
	}

	results := make([]model.TeamResult, 0, len(teams))
	for _, t := range teams {
		score, raw := c.teamPolicy.resolve(lookup(byEmail, t.Member1Email), lookup(byEmail, t.Member2Email))
		results = append(results, model.TeamResult{
			TeamName:     t.Name,
			Member1Email: t.Member1Email,
			Member2Email: t.Member2Email,
			Member1Name:  naming.DisplayName(t.Member1Email),
			Member2Name:  naming.DisplayName(t.Member2Email),
			Questions:    relabel(raw, labels),
			TotalScore:   score,
		})
	}

	c.logger.Debug(ctx, "team results fetched",
		logger.String("round", redact(teamURL)),
		logger.Int("teams", len(teams)),
		logger.String("policy", string(c.teamPolicy)),
	)
	return results, nil
}

func lookup(m map[string]*model.Candidate, email string) *model.Candidate {
	if email == "" {
		return nil
	}
	return m[email]
}

// fetchCandidates reads both candidate pages concurrently and concatenates them.
func (c *Client) fetchCandidates(ctx context.Context, roundURL string) ([]model.Candidate, error) {
	first, err := endpointURL(roundURL, "/candidates", url.Values{"limit": {strconv.Itoa(c.firstLimit)}})
	if err != nil {
		return nil, err
	}
	second, err := endpointURL(roundURL, "/candidates", url.Values{
		"limit":  {strconv.Itoa(c.secondLimit)},
		"offset": {strconv.Itoa(c.secondOffset)},
	})
	if err != nil {
		return nil, err
	}

	pages := make([][]model.Candidate, 2)
	g, gCtx := errgroup.WithContext(ctx)
	for i, u := range []string{first, second} {
		g.Go(func() error {
			rows, err := c.fetchCandidatePage(gCtx, u)
			pages[i] = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := append(pages[0], pages[1]...)
	metrics.UpdateUpstreamRecords(sourceCandidates, len(all))
	return all, nil
}

func (c *Client) fetchCandidatePage(ctx context.Context, pageURL string) ([]model.Candidate, error) {
	body, err := c.get(ctx, sourceCandidates, pageURL, true)
	if err != nil {
		return nil, err
	}

	var page candidatesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, c.decodeFailed(ctx, sourceCandidates, err)
	}
	if page.Data == nil {
		return nil, c.decodeFailed(ctx, sourceCandidates, errors.New("missing data array"))
	}

	out := make([]model.Candidate, 0, len(*page.Data))
	for _, row := range *page.Data {
		cand := model.Candidate{Email: row.Email, Questions: make(map[string]float64, len(row.Questions))}
		if row.Score.Valid {
			s := row.Score.Value
			cand.Score = &s
		}
		for qid, raw := range row.Questions {
			var n number
			if err := json.Unmarshal(raw, &n); err != nil {
				return nil, c.decodeFailed(ctx, sourceCandidates, fmt.Errorf("question %s: %w", qid, err))
			}
			cand.Questions[qid] = n.Value
		}
		out = append(out, cand)
	}
	return out, nil
}

// fetchQuestionLabels maps raw question ids to q1..qN in metadata order.
func (c *Client) fetchQuestionLabels(ctx context.Context, roundURL string) (map[string]string, error) {
	u, err := endpointURL(roundURL, "", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, sourceMetadata, u, true)
	if err != nil {
		return nil, err
	}

	var meta roundMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, c.decodeFailed(ctx, sourceMetadata, err)
	}
	if len(meta.Questions) == 0 || string(meta.Questions) == "null" {
		return nil, c.decodeFailed(ctx, sourceMetadata, errors.New("missing questions"))
	}
	values, err := orderedValues(meta.Questions)
	if err != nil {
		return nil, c.decodeFailed(ctx, sourceMetadata, err)
	}

	labels := make(map[string]string, len(values))
	for i, raw := range values {
		id, err := questionID(raw)
		if err != nil {
			return nil, c.decodeFailed(ctx, sourceMetadata, err)
		}
		// A repeated id keeps the label of its last position.
		labels[id] = "q" + strconv.Itoa(i+1)
	}
	return labels, nil
}

// relabel renames question ids; unknown ids keep their raw id.
func relabel(questions map[string]float64, labels map[string]string) map[string]float64 {
	out := make(map[string]float64, len(questions))
	for qid, score := range questions {
		if label, ok := labels[qid]; ok {
			out[label] = score
			continue
		}
		out[qid] = score
	}
	return out
}
