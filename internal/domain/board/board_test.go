package board

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type row struct {
	rank  int
	name  string
	group string
	total float64
}

func (r row) SearchKeys() []string { return []string{r.name} }
func (r row) GroupKey() string     { return r.group }
func (r row) Total() float64       { return r.total }

func rows(n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = row{rank: i + 1, name: fmt.Sprintf("player %02d", i+1), group: fmt.Sprintf("G%d", i%3+1), total: float64(100 - i)}
	}
	return out
}

func staticFetch(entries []row, err error) FetchFunc[row] {
	return func(context.Context) ([]row, error) { return entries, err }
}

func newBoard(fetch FetchFunc[row], opts ...Option) *Board[row] {
	return New("test", fetch, append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestFilter(t *testing.T) {
	Convey("Given ranked rows in three groups", t, func() {
		all := rows(9)

		Convey("no filter keeps everything", func() {
			So(Filter(all, Filters{}), ShouldHaveLength, 9)
			So(Filter(all, Filters{Group: "All"}), ShouldHaveLength, 9)
			So(Filter(all, Filters{Group: "all"}), ShouldHaveLength, 9)
		})

		Convey("search is a case-insensitive substring match", func() {
			got := Filter(all, Filters{Search: "PLAYER 0"})
			So(got, ShouldHaveLength, 9)

			got = Filter(all, Filters{Search: "er 07"})
			So(got, ShouldHaveLength, 1)
			So(got[0].rank, ShouldEqual, 7)
		})

		Convey("group filtering keeps unfiltered ranks", func() {
			got := Filter(all, Filters{Group: "G2"})
			So(got, ShouldHaveLength, 3)
			So(got[0].rank, ShouldEqual, 2)
			So(got[1].rank, ShouldEqual, 5)

			So(Filter(all, Filters{Group: "2"}), ShouldResemble, got)
			So(Filter(all, Filters{Group: "g2"}), ShouldResemble, got)
		})

		Convey("search and group combine", func() {
			So(Filter(all, Filters{Group: "G1", Search: "04"}), ShouldHaveLength, 1)
			So(Filter(all, Filters{Group: "G2", Search: "04"}), ShouldBeEmpty)
		})

		Convey("rows without a group ignore the group filter", func() {
			teams := []row{{name: "t1"}, {name: "t2"}}
			So(Filter(teams, Filters{Group: "G1"}), ShouldHaveLength, 2)
		})

		Convey("an empty input yields an empty, non-nil result", func() {
			got := Filter[row](nil, Filters{Search: "x"})
			So(got, ShouldNotBeNil)
			So(got, ShouldBeEmpty)
		})
	})
}

func TestPaginate(t *testing.T) {
	Convey("Given 25 rows", t, func() {
		all := rows(25)

		Convey("pages hold per-page rows", func() {
			got, p := Paginate(all, 2, 10)
			So(got, ShouldHaveLength, 10)
			So(got[0].rank, ShouldEqual, 11)
			So(p, ShouldResemble, Pagination{CurrentPage: 2, TotalPages: 3, HasMore: true})
		})

		Convey("the last page is partial", func() {
			got, p := Paginate(all, 3, 10)
			So(got, ShouldHaveLength, 5)
			So(p.HasMore, ShouldBeFalse)
		})

		Convey("out-of-range pages are clamped", func() {
			_, p := Paginate(all, 9, 10)
			So(p.CurrentPage, ShouldEqual, 3)

			_, p = Paginate(all, 0, 10)
			So(p.CurrentPage, ShouldEqual, 1)
		})

		Convey("an empty set is one empty page", func() {
			got, p := Paginate([]row{}, 4, 10)
			So(got, ShouldBeEmpty)
			So(p, ShouldResemble, Pagination{CurrentPage: 1, TotalPages: 1, HasMore: false})
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Summaries describe the filtered set", t, func() {
		s := Summarize([]row{{total: 90}, {total: 30}, {total: 0}})
		So(s.TotalParticipants, ShouldEqual, 3)
		So(s.AverageScore, ShouldEqual, 40.0)
		So(s.HighestScore, ShouldEqual, 90.0)
		So(s.LowestScore, ShouldEqual, 0.0)
		So(s.CompletionRate, ShouldAlmostEqual, 200.0/3, 1e-9)

		So(Summarize([]row{}), ShouldResemble, Summary{})
	})
}

func TestBoardStates(t *testing.T) {
	Convey("Given a board", t, func() {
		ctx := context.Background()

		Convey("it starts idle with no entries", func() {
			b := newBoard(staticFetch(rows(3), nil))
			So(b.State().Status, ShouldEqual, StatusIdle)
			So(b.View(Filters{}, 1).Entries, ShouldBeEmpty)
		})

		Convey("a successful refresh makes it ready", func() {
			b := newBoard(staticFetch(rows(3), nil))
			So(b.Refresh(ctx), ShouldBeNil)

			st := b.State()
			So(st.Status, ShouldEqual, StatusReady)
			So(st.Entries, ShouldHaveLength, 3)
			So(st.UpdatedAt.IsZero(), ShouldBeFalse)
			So(st.Refreshing, ShouldBeFalse)
		})

		Convey("a failed first load leaves it failed with no data", func() {
			boom := errors.New("boom")
			b := newBoard(staticFetch(nil, boom))
			So(b.Refresh(ctx), ShouldEqual, boom)

			st := b.State()
			So(st.Status, ShouldEqual, StatusFailed)
			So(st.Err, ShouldEqual, boom)
			So(st.Entries, ShouldBeEmpty)
		})

		Convey("a failure after a success serves the old data as stale", func() {
			var fail atomic.Bool
			b := newBoard(func(context.Context) ([]row, error) {
				if fail.Load() {
					return nil, errors.New("upstream down")
				}
				return rows(4), nil
			})
			So(b.Refresh(ctx), ShouldBeNil)

			fail.Store(true)
			So(b.Refresh(ctx), ShouldNotBeNil)

			st := b.State()
			So(st.Status, ShouldEqual, StatusReady)
			So(st.Stale, ShouldBeTrue)
			So(st.Entries, ShouldHaveLength, 4)

			page := b.View(Filters{}, 1)
			So(page.Error, ShouldEqual, "upstream down")
			So(page.Stale, ShouldBeTrue)

			Convey("and the next success clears it", func() {
				fail.Store(false)
				So(b.Refresh(ctx), ShouldBeNil)
				st := b.State()
				So(st.Stale, ShouldBeFalse)
				So(st.Err, ShouldBeNil)
			})
		})
	})
}

// gatedFetch blocks each call until its gate is released with the rows to return.
type gatedFetch struct {
	calls   atomic.Int32
	entered chan int
	gates   []chan []row
}

func newGatedFetch(n int) *gatedFetch {
	g := &gatedFetch{entered: make(chan int, n)}
	for i := 0; i < n; i++ {
		g.gates = append(g.gates, make(chan []row, 1))
	}
	return g
}

func (g *gatedFetch) fetch(ctx context.Context) ([]row, error) {
	i := int(g.calls.Add(1)) - 1
	g.entered <- i
	select {
	case r := <-g.gates[i]:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestFreshestWins(t *testing.T) {
	Convey("Given two overlapping refreshes", t, func() {
		g := newGatedFetch(2)
		b := newBoard(g.fetch)
		ctx := context.Background()

		first := make(chan error, 1)
		second := make(chan error, 1)
		go func() { first <- b.Refresh(ctx) }()
		<-g.entered
		go func() { second <- b.Refresh(ctx) }()
		<-g.entered

		So(b.State().Status, ShouldEqual, StatusLoading)

		Convey("when the newer one resolves first, the older result is discarded", func() {
			g.gates[1] <- rows(2)
			So(<-second, ShouldBeNil)
			g.gates[0] <- rows(7)
			So(<-first, ShouldEqual, ErrSuperseded)

			So(b.State().Entries, ShouldHaveLength, 2)
		})

		Convey("when they resolve in order, the newer result ends up applied", func() {
			g.gates[0] <- rows(7)
			So(<-first, ShouldBeNil)
			So(b.State().Refreshing, ShouldBeTrue)

			g.gates[1] <- rows(2)
			So(<-second, ShouldBeNil)

			st := b.State()
			So(st.Entries, ShouldHaveLength, 2)
			So(st.Refreshing, ShouldBeFalse)
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a board with a fetch in flight", t, func() {
		g := newGatedFetch(1)
		b := newBoard(g.fetch)

		st := b.Trigger()
		So(st.Status, ShouldEqual, StatusLoading)
		<-g.entered

		Convey("Close cancels it, waits, and the result is never applied", func() {
			b.Close()
			st := b.State()
			So(st.Status, ShouldEqual, StatusLoading)
			So(st.Entries, ShouldBeEmpty)

			Convey("and later refreshes are refused", func() {
				So(b.Refresh(context.Background()), ShouldEqual, ErrClosed)
				b.Close()
			})
		})
	})
}

func TestStart(t *testing.T) {
	Convey("Given a started board with a short interval", t, func() {
		var calls atomic.Int32
		b := newBoard(func(context.Context) ([]row, error) {
			calls.Add(1)
			return rows(3), nil
		}, WithInterval(10*time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		b.Start(ctx)
		b.Start(ctx)

		Convey("it loads immediately and keeps refetching", func() {
			So(eventually(func() bool { return calls.Load() >= 3 }), ShouldBeTrue)
			So(b.State().Status, ShouldEqual, StatusReady)
		})

		Convey("Close stops the ticker", func() {
			So(eventually(func() bool { return calls.Load() >= 1 }), ShouldBeTrue)
			b.Close()
			n := calls.Load()
			time.Sleep(50 * time.Millisecond)
			So(calls.Load(), ShouldEqual, n)
		})

		Reset(func() { b.Close() })
	})
}

func TestView(t *testing.T) {
	Convey("Given a ready board", t, func() {
		b := newBoard(staticFetch(rows(25), nil), WithPageSizes(10, 20))
		So(b.Refresh(context.Background()), ShouldBeNil)

		Convey("the default page size applies", func() {
			p := b.View(Filters{}, 1)
			So(p.Board, ShouldEqual, "test")
			So(p.Filters.PerPage, ShouldEqual, 10)
			So(p.Entries, ShouldHaveLength, 10)
			So(p.TotalResults, ShouldEqual, 25)
			So(p.Summary.TotalParticipants, ShouldEqual, 25)
			So(p.UpdatedAt, ShouldNotBeNil)
		})

		Convey("page sizes are capped", func() {
			p := b.View(Filters{PerPage: 500}, 1)
			So(p.Filters.PerPage, ShouldEqual, 20)
			So(p.Pagination.TotalPages, ShouldEqual, 2)
		})

		Convey("Query returns the same page untyped", func() {
			var h Handle = b
			info, v := h.Query(Filters{}, 2)
			So(info.Status, ShouldEqual, StatusReady)
			So(info.Entries, ShouldEqual, 25)

			page, ok := v.(Page[row])
			So(ok, ShouldBeTrue)
			So(page.Pagination.CurrentPage, ShouldEqual, 2)
			So(page.Entries[0].rank, ShouldEqual, 11)
		})

		Convey("filtered views paginate the filtered rows", func() {
			p := b.View(Filters{Group: "G3", PerPage: 5}, 2)
			So(p.TotalResults, ShouldEqual, 8)
			So(p.Pagination, ShouldResemble, Pagination{CurrentPage: 2, TotalPages: 2, HasMore: false})
			So(p.Entries[0].rank, ShouldEqual, 18)
		})
	})
}

func TestSession(t *testing.T) {
	Convey("Given a session on a ready board", t, func() {
		var size atomic.Int32
		size.Store(25)
		b := newBoard(func(context.Context) ([]row, error) { return rows(int(size.Load())), nil })
		So(b.Refresh(context.Background()), ShouldBeNil)
		s := b.NewSession()

		Convey("it starts on page 1 with the default page size", func() {
			So(s.Page(), ShouldEqual, 1)
			So(s.Filters().PerPage, ShouldEqual, 10)
		})

		Convey("changing pages clamps to the available pages", func() {
			s.ChangePage(3)
			So(s.Page(), ShouldEqual, 3)
			s.ChangePage(10)
			So(s.Page(), ShouldEqual, 3)
			s.ChangePage(-1)
			So(s.Page(), ShouldEqual, 1)
		})

		Convey("updating filters returns to page 1", func() {
			s.ChangePage(2)
			s.UpdateFilters(Filters{Search: "player"})
			So(s.Page(), ShouldEqual, 1)
			So(s.Filters().PerPage, ShouldEqual, 10)
		})

		Convey("a shrinking result set pulls the page back", func() {
			s.ChangePage(3)
			size.Store(12)
			So(b.Refresh(context.Background()), ShouldBeNil)

			p := s.Apply()
			So(p.Pagination.CurrentPage, ShouldEqual, 2)
			So(s.Page(), ShouldEqual, 2)
		})
	})
}
