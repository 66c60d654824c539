package domain

import "time"

// MachineState is the linear state of the orchestrator.
// A transition walks the states in declaration order and never branches back.
type MachineState string

const (
	StateIdle          MachineState = "idle"
	StatePreShowBlend  MachineState = "pre_show_blend"
	StateShowingBlend  MachineState = "showing_blend"
	StatePostShowBlend MachineState = "post_show_blend"
	StateSwitching     MachineState = "switching"
	StatePreHideBlend  MachineState = "pre_hide_blend"
	StateHidingBlend   MachineState = "hiding_blend"
	StatePostHideBlend MachineState = "post_hide_blend"
	StateCommitted     MachineState = "committed"
)

// Snapshot is the durable record of a committed state.
// It allows a host to restore parameters and re-enter the last state after a restart.
type Snapshot struct {
	// Current is the identifier of the last committed state.
	Current string `json:"current"`

	// Parameters maps parameter type names to their key/value data.
	Parameters map[string]map[string]any `json:"parameters,omitempty"`

	// CommittedAt is when the state was committed.
	CommittedAt time.Time `json:"committed_at"`
}
