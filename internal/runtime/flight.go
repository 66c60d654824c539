package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
)

// flight is the bookkeeping of the in-flight transition.
type flight struct {
	ctx      context.Context
	req      domain.TransitionRequest
	entry    domain.SceneEntry
	previous string
	started  time.Time

	// gate is replaced on every gated step; stale releases only close old gates.
	gate *atomic.Bool
	sw   *switchJob
}

// arm opens a new gate and returns its release function.
func (f *flight) arm() func() {
	g := new(atomic.Bool)
	f.gate = g
	return func() { g.Store(true) }
}

func (f *flight) released() bool {
	return f.gate != nil && f.gate.Load()
}

// next returns the state following s in the linear sequence.
func next(s domain.MachineState) domain.MachineState {
	switch s {
	case domain.StatePreShowBlend:
		return domain.StateShowingBlend
	case domain.StateShowingBlend:
		return domain.StatePostShowBlend
	case domain.StatePostShowBlend:
		return domain.StateSwitching
	case domain.StateSwitching:
		return domain.StatePreHideBlend
	case domain.StatePreHideBlend:
		return domain.StateHidingBlend
	case domain.StateHidingBlend:
		return domain.StatePostHideBlend
	case domain.StatePostHideBlend:
		return domain.StateCommitted
	}
	return domain.StateIdle
}

// blendPhase maps a machine state to the handler phase raised on entry, if any.
func blendPhase(s domain.MachineState) (domain.BlendPhase, bool) {
	switch s {
	case domain.StatePreShowBlend:
		return domain.PreShowBlend, true
	case domain.StatePostShowBlend:
		return domain.PostShowBlend, true
	case domain.StatePreHideBlend:
		return domain.PreHideBlend, true
	case domain.StatePostHideBlend:
		return domain.PostHideBlend, true
	}
	return "", false
}
