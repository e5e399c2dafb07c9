package feed

import "errors"

var (
	// ErrCircuitOpen is returned when too many consecutive dial attempts failed
	// and the breaker is still cooling down.
	ErrCircuitOpen = errors.New("dserv connection breaker is open")

	// ErrNoURL is returned when a dserv client has no endpoint.
	ErrNoURL = errors.New("no dserv URL configured")

	// ErrNoPath is returned when a file or script feed has no path.
	ErrNoPath = errors.New("no path configured")

	// ErrNoFeed is returned by New for the "none" feed kind.
	ErrNoFeed = errors.New("no feed configured")

	// ErrBadChunk is returned for chunk headers that cannot be reassembled.
	ErrBadChunk = errors.New("invalid chunked message")
)
