package board

import "errors"

var (
	// ErrClosed is returned when refreshing a closed board.
	ErrClosed = errors.New("board closed")
	// ErrSuperseded is returned when a fetch resolved after a newer one was applied.
	ErrSuperseded = errors.New("refresh superseded by a newer one")
)
