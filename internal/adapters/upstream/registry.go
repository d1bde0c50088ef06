package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/model"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

type participantDoc struct {
	Email string `json:"email"`
	Group number `json:"group"`
}

type teamDoc struct {
	Name         string `json:"name"`
	Member1Email string `json:"member_1_email"`
	Member2Email string `json:"member_2_email"`
}

type gameDoc struct {
	Member1Email string `json:"member_1_email"`
	Member2Email string `json:"member_2_email"`
	Member3Email string `json:"member_3_email"`
	Member4Email string `json:"member_4_email"`
	Score        number `json:"score"`
}

// FetchRegistrySnapshot reads participants, teams and games concurrently.
func (c *Client) FetchRegistrySnapshot(ctx context.Context) (model.RegistrySnapshot, error) {
	var snap model.RegistrySnapshot

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Participants, err = c.FetchParticipants(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Teams, err = c.FetchTeams(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Games, err = c.FetchGames(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.RegistrySnapshot{}, fmt.Errorf("fetch registry snapshot: %w", err)
	}
	return snap, nil
}

// FetchParticipants reads /participants.json. Every record needs an email.
func (c *Client) FetchParticipants(ctx context.Context) ([]model.Participant, error) {
	docs, err := fetchCollection[participantDoc](ctx, c, sourceParticipants, "/participants.json")
	if err != nil {
		return nil, err
	}
	out := make([]model.Participant, 0, len(docs))
	for i, d := range docs {
		if d.Email == "" {
			return nil, c.decodeFailed(ctx, sourceParticipants, fmt.Errorf("participant %d has no email", i))
		}
		out = append(out, model.Participant{Email: d.Email, Group: int(d.Group.Value)})
	}
	return out, nil
}

// FetchTeams reads /teams.json. Every team needs a first member.
func (c *Client) FetchTeams(ctx context.Context) ([]model.Team, error) {
	docs, err := fetchCollection[teamDoc](ctx, c, sourceTeams, "/teams.json")
	if err != nil {
		return nil, err
	}
	out := make([]model.Team, 0, len(docs))
	for i, d := range docs {
		if d.Member1Email == "" {
			return nil, c.decodeFailed(ctx, sourceTeams, fmt.Errorf("team %d has no member_1_email", i))
		}
		out = append(out, model.Team{Name: d.Name, Member1Email: d.Member1Email, Member2Email: d.Member2Email})
	}
	return out, nil
}

// FetchGames reads /games.json. Empty member slots are skipped.
func (c *Client) FetchGames(ctx context.Context) ([]model.Game, error) {
	docs, err := fetchCollection[gameDoc](ctx, c, sourceGames, "/games.json")
	if err != nil {
		return nil, err
	}
	out := make([]model.Game, 0, len(docs))
	for _, d := range docs {
		var members []string
		for _, e := range []string{d.Member1Email, d.Member2Email, d.Member3Email, d.Member4Email} {
			if e != "" {
				members = append(members, e)
			}
		}
		out = append(out, model.Game{MemberEmails: members, Score: d.Score.Value})
	}
	return out, nil
}

// fetchCollection reads one registry document and decodes its values in order.
func fetchCollection[T any](ctx context.Context, c *Client, source, path string) ([]T, error) {
	u, err := endpointURL(c.registryURL, path, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, source, u, false)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, c.decodeFailed(ctx, source, errors.New("invalid json"))
	}

	values, err := orderedValues(body)
	if err != nil {
		return nil, c.decodeFailed(ctx, source, err)
	}
	out := make([]T, 0, len(values))
	for i, raw := range values {
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, c.decodeFailed(ctx, source, fmt.Errorf("record %d: %w", i, err))
		}
		out = append(out, doc)
	}
	metrics.UpdateUpstreamRecords(source, len(out))
	return out, nil
}
