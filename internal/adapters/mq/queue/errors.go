package queue

import "errors"

// Sentinel kinds for coordinator errors.
var (
	ErrClosed  = errors.New("coordinator closed")
	ErrStalled = errors.New("delivery stalled")
)
