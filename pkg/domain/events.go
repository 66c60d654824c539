package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateEnter EventType = "state_enter"
	EventStateLeave EventType = "state_leave"
	EventUnitLoad   EventType = "unit_load"
	EventUnitUnload EventType = "unit_unload"
	EventProgress   EventType = "progress"
	EventCommit     EventType = "commit"
	EventFailure    EventType = "failure"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp    time.Time `json:"timestamp"`
	Type         EventType `json:"type"`
	TransitionID string    `json:"transition_id"`
	Identifier   string    `json:"identifier"`
}

// StateEvent represents entry into or exit from a machine state.
type StateEvent struct {
	EventBase
	State MachineState `json:"state"`
}

// UnitEvent represents a load or unload issued to the host.
type UnitEvent struct {
	EventBase
	Unit string   `json:"unit"`
	Mode LoadMode `json:"mode,omitempty"`
}

// ProgressEvent carries the aggregated loading progress.
type ProgressEvent struct {
	EventBase
	Progress float64 `json:"progress"`
}

// OutcomeEvent reports the end of a transition.
type OutcomeEvent struct {
	EventBase
	Previous string        `json:"previous"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every hook is optional.
type LifecycleHooks struct {
	OnStateEnter func(context.Context, *StateEvent)
	OnStateLeave func(context.Context, *StateEvent)
	OnUnitLoad   func(context.Context, *UnitEvent)
	OnUnitUnload func(context.Context, *UnitEvent)
	OnProgress   func(context.Context, *ProgressEvent)
	OnCommit     func(context.Context, *OutcomeEvent)
	OnFailure    func(context.Context, *OutcomeEvent)
}

// Merge returns hooks that call h first and then other, for every hook set on either.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateEnter: chain(h.OnStateEnter, other.OnStateEnter),
		OnStateLeave: chain(h.OnStateLeave, other.OnStateLeave),
		OnUnitLoad:   chain(h.OnUnitLoad, other.OnUnitLoad),
		OnUnitUnload: chain(h.OnUnitUnload, other.OnUnitUnload),
		OnProgress:   chain(h.OnProgress, other.OnProgress),
		OnCommit:     chain(h.OnCommit, other.OnCommit),
		OnFailure:    chain(h.OnFailure, other.OnFailure),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
