package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrUnknownBoard   = errors.New("unknown board")
	ErrLoading        = errors.New("leaderboard is loading")
	ErrUpstreamFailed = errors.New("upstream failed")
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }
func (e *opError) Unwrap() error { return e.err }

// NewKind returns a sentinel kind tagged with op.
func NewKind(op string, kind error) error {
	return &opError{op: op, err: kind}
}

// Wrap tags err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}
