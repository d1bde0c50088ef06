package board

// Session tracks one consumer's filters and page against a Board. It is not
// safe for concurrent use.
type Session[T Searchable] struct {
	board   *Board[T]
	filters Filters
	page    int
}

// NewSession starts a session on page 1 with no filters.
func (b *Board[T]) NewSession() *Session[T] {
	return &Session[T]{board: b, page: 1, filters: Filters{PerPage: b.perPage}}
}

// Filters returns the active filters.
func (s *Session[T]) Filters() Filters { return s.filters }

// Page returns the current page number.
func (s *Session[T]) Page() int { return s.page }

// UpdateFilters replaces the filters and returns to page 1.
func (s *Session[T]) UpdateFilters(f Filters) {
	f.PerPage = s.board.pageSize(f.PerPage)
	s.filters = f
	s.page = 1
}

// ChangePage moves to page, clamped to the pages the current filters produce.
func (s *Session[T]) ChangePage(page int) {
	s.page = page
	s.Apply()
}

// Apply renders the current page. If the result set shrank below the current
// page, the session moves to the last page.
func (s *Session[T]) Apply() Page[T] {
	p := s.board.View(s.filters, s.page)
	s.page = p.Pagination.CurrentPage
	return p
}
