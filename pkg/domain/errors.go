package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an identifier does not resolve to a scene entry.
	ErrNotFound = errors.New("scene not found")

	// ErrInvalidParameter is returned when a parameter record is missing but required, or has the wrong type.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDuplicateKey is returned when a parameter key already exists and overwrite is disabled.
	ErrDuplicateKey = errors.New("duplicate parameter key")

	// ErrMissingKey is returned when a parameter key must exist but does not.
	ErrMissingKey = errors.New("missing parameter key")

	// ErrOverSignaled is returned when a barrier receives more signals than expected.
	ErrOverSignaled = errors.New("barrier signaled too many times")

	// ErrRegistryConflict marks advisory registry problems (empty or duplicate identifiers).
	ErrRegistryConflict = errors.New("registry conflict")

	// ErrTransitionInProgress is returned when a transition is requested while another is in flight.
	ErrTransitionInProgress = errors.New("transition already in progress")

	// ErrRegistrySealed is returned when a handler is registered after the dispatch table was sealed.
	ErrRegistrySealed = errors.New("dispatch registry is sealed")

	// ErrEmptyScene is returned when a scene entry has no units to load.
	ErrEmptyScene = errors.New("scene has no units")

	// ErrSnapshotNotFound is returned when no snapshot exists under the requested key.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// TransitionError reports a failure that happened after the transition started.
// The current state is left unchanged when it is returned.
type TransitionError struct {
	Identifier string
	State      MachineState
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition to %q failed during %s: %v", e.Identifier, e.State, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
