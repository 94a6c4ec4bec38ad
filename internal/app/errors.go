package service

import "errors"

// Sentinel kinds for session errors.
var (
	ErrNotConfigured     = errors.New("please configure the elevators first")
	ErrFloorNotServiced  = errors.New("floor is not serviced")
	ErrNoFloorSelected   = errors.New("no floor selected")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrClosed            = errors.New("session closed")
)
