package upstream

import "errors"

// Sentinel kinds for gateway failures. Every error returned by Client wraps
// exactly one of them.
var (
	// ErrTransport covers connection, timeout and cancellation failures.
	ErrTransport = errors.New("upstream transport failed")
	// ErrUpstreamStatus is returned for any non-2xx response.
	ErrUpstreamStatus = errors.New("upstream returned error status")
	// ErrMalformedResponse is returned when a body does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrInvalidEndpoint is returned for empty or unparsable base URLs.
	ErrInvalidEndpoint = errors.New("invalid upstream endpoint")
)
