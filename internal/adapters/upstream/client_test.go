package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/mockupstream"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/sync/errgroup"
)

func score(v float64) *float64 { return &v }

func testFixtures() mockupstream.Fixtures {
	return mockupstream.Fixtures{
		Participants: []mockupstream.Participant{
			{Email: "alice.a@x.com", Group: 1},
			{Email: "bob.b@x.com", Group: 2},
			{Email: "carol.c@x.com"},
		},
		Teams: []mockupstream.Team{
			{Name: "T1", Member1Email: "alice.a@x.com", Member2Email: "bob.b@x.com"},
			{Name: "T2", Member1Email: "carol.c@x.com", Member2Email: "dave.d@x.com"},
		},
		Games: []mockupstream.Game{
			{Member1Email: "alice.a@x.com", Member3Email: "bob.b@x.com", Score: 40},
		},
		Rounds: map[string]mockupstream.Round{
			"round1": {
				Name:        "Round 1",
				QuestionIDs: []string{"111", "222"},
				Candidates: []mockupstream.Candidate{
					{Email: "alice.a@x.com", Score: score(60), Questions: map[string]float64{"111": 30, "222": 30}},
					{Email: "bob.b@x.com", Score: score(30), Questions: map[string]float64{"111": 30, "999": 5}},
					{Email: "stranger@x.com", Score: score(99)},
					{Email: "alice.a@x.com", Score: score(10)},
				},
			},
			"team": {
				Name:        "Team",
				QuestionIDs: []string{"t1"},
				Candidates: []mockupstream.Candidate{
					{Email: "alice.a@x.com", Score: score(50), Questions: map[string]float64{"t1": 50}},
					{Email: "bob.b@x.com", Score: score(70), Questions: map[string]float64{"t1": 70}},
					{Email: "carol.c@x.com"},
				},
			},
		},
	}
}

func newTestClient(registry string, opts ...Option) *Client {
	opts = append([]Option{WithLogger(logger.Nop()), WithTimeout(2 * time.Second)}, opts...)
	return New(registry, opts...)
}

func TestFetchRoundResults(t *testing.T) {
	Convey("Given a scoring service and registry", t, func() {
		mock := mockupstream.NewServer(testFixtures(), mockupstream.WithToken("secret"))
		srv := httptest.NewServer(mock.Handler())
		Reset(func() { srv.Close() })

		client := newTestClient(srv.URL, WithToken("secret"))
		ctx := context.Background()

		Convey("every registry participant gets exactly one result, in registry order", func() {
			results, err := client.FetchRoundResults(ctx, srv.URL+"/round1")
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 3)

			So(results[0].Email, ShouldEqual, "alice.a@x.com")
			So(results[0].FullName, ShouldEqual, "A Alice")
			So(results[0].Group, ShouldEqual, 1)
			So(results[0].TotalScore, ShouldEqual, 60.0)
			So(results[0].Questions, ShouldResemble, map[string]float64{"q1": 30, "q2": 30})

			Convey("unknown question ids keep their raw id", func() {
				So(results[1].Questions, ShouldResemble, map[string]float64{"q1": 30, "999": 5})
			})

			Convey("participants without a record get a zero entry in the default group", func() {
				So(results[2].FullName, ShouldEqual, "C Carol")
				So(results[2].TotalScore, ShouldEqual, 0.0)
				So(results[2].Questions, ShouldBeEmpty)
				So(results[2].Group, ShouldEqual, 1)
			})
		})

		Convey("the default group is configurable", func() {
			results, err := newTestClient(srv.URL, WithToken("secret"), WithDefaultGroup(3)).FetchRoundResults(ctx, srv.URL+"/round1")
			So(err, ShouldBeNil)
			So(results[2].Group, ShouldEqual, 3)
		})

		Convey("only the two configured candidate pages are read", func() {
			paged := newTestClient(srv.URL, WithToken("secret"), WithPageLayout(1, 1, 1))
			results, err := paged.FetchRoundResults(ctx, srv.URL+"/round1")
			So(err, ShouldBeNil)
			So(results[0].TotalScore, ShouldEqual, 60.0)
			So(results[1].TotalScore, ShouldEqual, 30.0)
		})

		Convey("a missing token is rejected upstream", func() {
			_, err := newTestClient(srv.URL).FetchRoundResults(ctx, srv.URL+"/round1")
			So(errors.Is(err, ErrUpstreamStatus), ShouldBeTrue)
		})

		Convey("any failing read fails the operation", func() {
			mock.Fail("/participants.json", http.StatusInternalServerError)
			results, err := client.FetchRoundResults(ctx, srv.URL+"/round1")
			So(results, ShouldBeNil)
			So(errors.Is(err, ErrUpstreamStatus), ShouldBeTrue)
		})

		Convey("an unknown round is a status error", func() {
			_, err := client.FetchRoundResults(ctx, srv.URL+"/round9")
			So(errors.Is(err, ErrUpstreamStatus), ShouldBeTrue)
		})
	})
}

func TestFetchTeamResults(t *testing.T) {
	Convey("Given a team round", t, func() {
		srv := httptest.NewServer(mockupstream.NewServer(testFixtures()).Handler())
		Reset(func() { srv.Close() })
		ctx := context.Background()

		fetch := func(p TeamScorePolicy) []float64 {
			results, err := newTestClient(srv.URL, WithTeamScorePolicy(p)).FetchTeamResults(ctx, srv.URL+"/team")
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 2)
			return []float64{results[0].TotalScore, results[1].TotalScore}
		}

		Convey("member 1 wins by default", func() {
			results, err := newTestClient(srv.URL).FetchTeamResults(ctx, srv.URL+"/team")
			So(err, ShouldBeNil)
			So(results[0].TeamName, ShouldEqual, "T1")
			So(results[0].Member1Name, ShouldEqual, "A Alice")
			So(results[0].Member2Name, ShouldEqual, "B Bob")
			So(results[0].TotalScore, ShouldEqual, 50.0)
			So(results[0].Questions, ShouldResemble, map[string]float64{"q1": 50})
		})

		Convey("members without a score contribute nothing", func() {
			So(fetch(Member1First)[1], ShouldEqual, 0.0)
		})

		Convey("the other policies combine both members", func() {
			So(fetch(MaxOfMembers)[0], ShouldEqual, 70.0)
			So(fetch(SumOfMembers)[0], ShouldEqual, 120.0)
			So(fetch(AvgOfMembers)[0], ShouldEqual, 60.0)
		})
	})
}

func TestFetchRegistry(t *testing.T) {
	Convey("Given a registry", t, func() {
		srv := httptest.NewServer(mockupstream.NewServer(testFixtures()).Handler())
		Reset(func() { srv.Close() })
		client := newTestClient(srv.URL)

		Convey("the snapshot holds every collection", func() {
			snap, err := client.FetchRegistrySnapshot(context.Background())
			So(err, ShouldBeNil)
			So(snap.Participants, ShouldHaveLength, 3)
			So(snap.Teams, ShouldHaveLength, 2)
			So(snap.Games, ShouldHaveLength, 1)

			Convey("empty game slots are skipped", func() {
				So(snap.Games[0].MemberEmails, ShouldResemble, []string{"alice.a@x.com", "bob.b@x.com"})
				So(snap.Games[0].Score, ShouldEqual, 40.0)
			})
		})
	})
}

func TestRegistryPayloads(t *testing.T) {
	Convey("Given hand-written registry payloads", t, func() {
		body := ""
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))
		Reset(func() { srv.Close() })
		client := newTestClient(srv.URL)
		ctx := context.Background()

		Convey("null collections are empty", func() {
			body = `null`
			ps, err := client.FetchParticipants(ctx)
			So(err, ShouldBeNil)
			So(ps, ShouldBeEmpty)
		})

		Convey("string groups and scores are accepted", func() {
			body = `{"-a":{"email":"a@x","group":"2"}}`
			ps, err := client.FetchParticipants(ctx)
			So(err, ShouldBeNil)
			So(ps[0].Group, ShouldEqual, 2)

			body = `[{"member_1_email":"a@x","score":"15"}]`
			games, err := client.FetchGames(ctx)
			So(err, ShouldBeNil)
			So(games[0].Score, ShouldEqual, 15.0)
		})

		Convey("a participant without an email is malformed", func() {
			body = `[{"group":1}]`
			_, err := client.FetchParticipants(ctx)
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})

		Convey("a team without a first member is malformed", func() {
			body = `{"x":{"name":"T","member_2_email":"b@x"}}`
			_, err := client.FetchTeams(ctx)
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})

		Convey("invalid JSON is malformed", func() {
			body = `{"x":`
			_, err := client.FetchTeams(ctx)
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})
	})
}

func TestScoringPayloads(t *testing.T) {
	Convey("Given hand-written scoring payloads", t, func() {
		meta := `{"questions":{"1":"b","0":"a"}}`
		page := `{"data":[{"email":"p@x","score":3,"questions":{"a":1,"b":2}}]}`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/r":
				_, _ = w.Write([]byte(meta))
			case "/r/candidates":
				if r.URL.Query().Get("offset") != "" {
					_, _ = w.Write([]byte(`{"data":[]}`))
					return
				}
				_, _ = w.Write([]byte(page))
			case "/participants.json":
				_, _ = w.Write([]byte(`[{"email":"p@x","group":2}]`))
			default:
				http.NotFound(w, r)
			}
		}))
		Reset(func() { srv.Close() })
		client := newTestClient(srv.URL)
		ctx := context.Background()

		Convey("object metadata is labelled in index order", func() {
			results, err := client.FetchRoundResults(ctx, srv.URL+"/r")
			So(err, ShouldBeNil)
			So(results[0].Questions, ShouldResemble, map[string]float64{"q1": 1, "q2": 2})
			So(results[0].Group, ShouldEqual, 2)
		})

		Convey("array metadata is labelled in array order", func() {
			meta = `{"questions":["b","a"]}`
			results, err := client.FetchRoundResults(ctx, srv.URL+"/r")
			So(err, ShouldBeNil)
			So(results[0].Questions, ShouldResemble, map[string]float64{"q2": 1, "q1": 2})
		})

		Convey("metadata without questions is malformed", func() {
			meta = `{"name":"r"}`
			_, err := client.FetchRoundResults(ctx, srv.URL+"/r")
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})

		Convey("a page without a data array is malformed", func() {
			page = `{"items":[]}`
			_, err := client.FetchRoundResults(ctx, srv.URL+"/r")
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})

		Convey("non-numeric question scores are malformed", func() {
			page = `{"data":[{"email":"p@x","score":3,"questions":{"a":"lots"}}]}`
			_, err := client.FetchRoundResults(ctx, srv.URL+"/r")
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})
	})
}

func TestTransportFailures(t *testing.T) {
	Convey("Given an unreachable upstream", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()
		client := newTestClient(addr)

		Convey("requests fail with a transport error", func() {
			_, err := client.FetchParticipants(context.Background())
			So(errors.Is(err, ErrTransport), ShouldBeTrue)
		})

		Convey("a cancelled context fails before dialing", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := client.FetchParticipants(ctx)
			So(errors.Is(err, ErrTransport), ShouldBeTrue)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("an empty registry URL is rejected", func() {
			_, err := newTestClient("").FetchGames(context.Background())
			So(errors.Is(err, ErrInvalidEndpoint), ShouldBeTrue)
		})
	})
}

func TestConcurrentRequestsOneHost(t *testing.T) {
	Convey("Given a slow registry on a single host", t, func() {
		inner := mockupstream.NewServer(testFixtures()).Handler()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(20 * time.Millisecond)
			inner.ServeHTTP(w, r)
		}))
		Reset(func() { srv.Close() })
		client := newTestClient(srv.URL)

		Convey("requests beyond the connection cap wait for a free connection", func() {
			var g errgroup.Group
			for i := 0; i < maxConnsPerHost+50; i++ {
				g.Go(func() error {
					participants, err := client.FetchParticipants(context.Background())
					if err == nil && len(participants) != 3 {
						return errors.New("short participant list")
					}
					return err
				})
			}
			So(g.Wait(), ShouldBeNil)
		})
	})
}

func TestParseTeamScorePolicy(t *testing.T) {
	Convey("Team score policies parse from config strings", t, func() {
		p, err := ParseTeamScorePolicy("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, Member1First)

		p, err = ParseTeamScorePolicy(" MAX ")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, MaxOfMembers)

		_, err = ParseTeamScorePolicy("median")
		So(err, ShouldNotBeNil)
	})
}
