package nci

import "errors"

var (
	// ErrNoPath is returned by SetState when no transition path is defined
	// from the current (or in-flight destination) state to the requested
	// target.
	ErrNoPath = errors.New("nci: no transition path to requested state")

	// ErrTimeout is delivered internally when an in-flight command's timer
	// expires before a matching response arrives; it always precedes a
	// stall(error=true) and is exported so callers can recognize it in logs
	// or via errors.Is on Core.Err.
	ErrTimeout = errors.New("nci: command timed out")

	// ErrStalled is returned by operations attempted while the core is in
	// StateError or StateStop; callers must Restart first.
	ErrStalled = errors.New("nci: core is stalled, call Restart")

	// ErrClosed is returned by Send/SetState/Restart after Close.
	ErrClosed = errors.New("nci: core is closed")
)
