package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork matches every failed remote call: transport errors,
	// non-2xx statuses and bodies that could not be decoded.
	ErrNetwork = errors.New("remote call failed")
	// ErrNotConfigured is returned by Positions when the service has no fleet.
	ErrNotConfigured = errors.New("no elevators configured")
	// ErrElevatorNotFound is returned by Position for an unknown id.
	ErrElevatorNotFound = errors.New("elevator not found")
	// ErrInvalidBaseURL is returned by New.
	ErrInvalidBaseURL = errors.New("invalid base url")
)

// CallError describes one failed remote call.
type CallError struct {
	Call       string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Call, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Call, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNetwork.
func (e *CallError) Is(target error) bool { return target == ErrNetwork }
