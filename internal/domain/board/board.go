// Package board keeps leaderboard views fresh. A Board owns one fetch
// function, refetches it on a ticker and serves filtered, paginated pages
// from the last good result.
package board

import (
	"context"
	"sync"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/metrics"
)

// Status is a board's load state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// FetchFunc produces a complete, ranked snapshot.
type FetchFunc[T Searchable] func(ctx context.Context) ([]T, error)

// State is a copy of a board's current state.
//
// Status is Loading until the first fetch resolves, then Ready once any fetch
// has succeeded or Failed if none has. A failed refresh after a success keeps
// the old entries and sets Stale and Err. Refreshing reports a fetch in flight
// while data is already being served.
type State[T Searchable] struct {
	Status     Status
	Refreshing bool
	Stale      bool
	Err        error
	UpdatedAt  time.Time
	Entries    []T
}

// Page is one filtered page of a board.
type Page[T Searchable] struct {
	Board        string     `json:"board"`
	Status       Status     `json:"status"`
	Refreshing   bool       `json:"refreshing"`
	Stale        bool       `json:"stale"`
	Error        string     `json:"error,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	Filters      Filters    `json:"filters"`
	Pagination   Pagination `json:"pagination"`
	TotalResults int        `json:"total_results"`
	Summary      Summary    `json:"summary"`
	Entries      []T        `json:"entries"`
}

// Info describes a board without its entries.
type Info struct {
	Board      string     `json:"board"`
	Status     Status     `json:"status"`
	Refreshing bool       `json:"refreshing"`
	Stale      bool       `json:"stale"`
	Error      string     `json:"error,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	Entries    int        `json:"entries"`
	IntervalMs int64      `json:"interval_ms"`
}

// Handle is a Board with its entry type erased.
type Handle interface {
	Name() string
	Start(ctx context.Context)
	Refresh(ctx context.Context) error
	Trigger() Info
	Info() Info
	Query(f Filters, page int) (Info, any)
	Close()
}

// Board is a periodically refreshed leaderboard view.
//
// Every fetch takes a sequence number when it starts. A result is applied
// only if no later-started fetch has been applied already, so the freshest
// fetch wins regardless of resolution order. Results that resolve after
// Close are dropped.
type Board[T Searchable] struct {
	name  string
	fetch FetchFunc[T]
	settings

	mu       sync.Mutex
	state    State[T]
	loaded   bool
	seq      uint64
	applied  uint64
	inflight int
	started  bool
	closed   bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// New creates an idle board. Nothing is fetched until Start or Refresh.
func New[T Searchable](name string, fetch FetchFunc[T], opts ...Option) *Board[T] {
	s := settings{
		interval:   defaultInterval,
		perPage:    defaultPerPage,
		maxPerPage: defaultMaxPerPage,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("board")
	}
	s.logger = s.logger.With(logger.String("board", name))

	ctx, cancel := context.WithCancel(context.Background())
	return &Board[T]{
		name:     name,
		fetch:    fetch,
		settings: s,
		state:    State[T]{Status: StatusIdle},
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

// Name returns the board name.
func (b *Board[T]) Name() string { return b.name }

// Start issues the initial fetch and refetches every interval until ctx is
// done or Close is called. Calling Start again has no effect.
func (b *Board[T]) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return
	}
	b.started = true
	token := b.beginLocked(ctx)
	b.wg.Add(1)
	b.mu.Unlock()

	stop := context.AfterFunc(ctx, b.cancel)

	go func() {
		defer b.wg.Done()
		defer stop()

		_ = b.complete(b.ctx, token)

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopChan:
				return
			case <-ticker.C:
				_ = b.Refresh(b.ctx)
			}
		}
	}()
}

// Refresh fetches now and waits for the result. It returns the fetch error,
// ErrSuperseded if a newer fetch was applied first, or ErrClosed.
func (b *Board[T]) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	token := b.beginLocked(ctx)
	b.mu.Unlock()

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	return b.complete(fctx, token)
}

// Trigger starts a refresh in the background and reports the state it left
// the board in.
func (b *Board[T]) Trigger() Info {
	b.mu.Lock()
	if b.closed {
		info := b.info(b.state)
		b.mu.Unlock()
		return info
	}
	token := b.beginLocked(b.ctx)
	b.wg.Add(1)
	info := b.info(b.state)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		_ = b.complete(b.ctx, token)
	}()
	return info
}

// Close stops the ticker, cancels in-flight fetches and waits for the
// board's goroutines. Results that arrive afterwards are discarded.
func (b *Board[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.stopChan)
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	b.logger.Debug(context.Background(), "board closed")
}

// State returns a copy of the current state.
func (b *Board[T]) State() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLocked()
}

// Info reports the board state without entries.
func (b *Board[T]) Info() Info {
	return b.info(b.State())
}

// View filters the current entries and returns the requested page. A page
// size outside (0, max] falls back to the default or the maximum.
func (b *Board[T]) View(f Filters, page int) Page[T] {
	return b.view(b.State(), f, page)
}

// Query is View for callers that do not know the entry type.
func (b *Board[T]) Query(f Filters, page int) (Info, any) {
	st := b.State()
	return b.info(st), b.view(st, f, page)
}

func (b *Board[T]) info(st State[T]) Info {
	info := Info{
		Board:      b.name,
		Status:     st.Status,
		Refreshing: st.Refreshing,
		Stale:      st.Stale,
		Entries:    len(st.Entries),
		IntervalMs: b.interval.Milliseconds(),
	}
	if st.Err != nil {
		info.Error = st.Err.Error()
	}
	if !st.UpdatedAt.IsZero() {
		at := st.UpdatedAt
		info.UpdatedAt = &at
	}
	return info
}

func (b *Board[T]) view(st State[T], f Filters, page int) Page[T] {
	f.PerPage = b.pageSize(f.PerPage)

	filtered := Filter(st.Entries, f)
	entries, pagination := Paginate(filtered, page, f.PerPage)

	info := b.info(st)
	return Page[T]{
		Board:        info.Board,
		Status:       info.Status,
		Refreshing:   info.Refreshing,
		Stale:        info.Stale,
		Error:        info.Error,
		UpdatedAt:    info.UpdatedAt,
		Filters:      f,
		Pagination:   pagination,
		TotalResults: len(filtered),
		Summary:      Summarize(filtered),
		Entries:      entries,
	}
}

func (b *Board[T]) pageSize(n int) int {
	switch {
	case n <= 0:
		return b.perPage
	case n > b.maxPerPage:
		return b.maxPerPage
	default:
		return n
	}
}

func (b *Board[T]) copyLocked() State[T] {
	st := b.state
	st.Entries = append([]T(nil), b.state.Entries...)
	return st
}

// beginLocked takes a sequence number and marks the board as loading.
func (b *Board[T]) beginLocked(ctx context.Context) uint64 {
	b.seq++
	b.inflight++
	if b.loaded {
		b.state.Refreshing = true
	} else if b.state.Status != StatusLoading {
		b.logger.Info(ctx, "board loading", logger.String("from", string(b.state.Status)))
		b.state.Status = StatusLoading
	}
	return b.seq
}

func (b *Board[T]) complete(ctx context.Context, token uint64) error {
	start := time.Now()
	entries, err := b.fetch(ctx)
	return b.finish(ctx, token, entries, err, time.Since(start))
}

func (b *Board[T]) finish(ctx context.Context, token uint64, entries []T, fetchErr error, took time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inflight--
	ms := float64(took.Milliseconds())

	if b.closed {
		metrics.RecordBoardRefresh(b.name, metrics.RefreshDiscarded, ms)
		return ErrClosed
	}
	if token < b.applied {
		metrics.RecordBoardRefresh(b.name, metrics.RefreshDiscarded, ms)
		b.state.Refreshing = b.loaded && b.inflight > 0
		b.logger.Debug(ctx, "discarded superseded result", logger.Int64("seq", int64(token)))
		return ErrSuperseded
	}
	b.applied = token

	if fetchErr != nil {
		metrics.RecordBoardRefresh(b.name, metrics.RefreshFailure, ms)
		b.state.Err = fetchErr
		if b.loaded {
			b.state.Stale = true
			metrics.UpdateBoardStale(b.name, true)
			b.logger.Warn(ctx, "refresh failed, serving previous data", logger.Error(fetchErr))
		} else {
			b.state.Status = StatusFailed
			b.logger.Warn(ctx, "initial load failed", logger.Error(fetchErr))
		}
		b.state.Refreshing = b.loaded && b.inflight > 0
		return fetchErr
	}

	now := time.Now()
	if b.state.Status != StatusReady {
		b.logger.Info(ctx, "board ready", logger.Int("entries", len(entries)))
	}
	b.loaded = true
	b.state = State[T]{
		Status:     StatusReady,
		Refreshing: b.inflight > 0,
		UpdatedAt:  now,
		Entries:    entries,
	}
	metrics.RecordBoardRefresh(b.name, metrics.RefreshSuccess, ms)
	metrics.UpdateBoardSnapshot(b.name, len(entries), now)
	b.logger.Debug(ctx, "board refreshed", logger.Int("entries", len(entries)), logger.Duration("took", took))
	return nil
}
