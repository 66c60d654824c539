package runtime

import (
	"github.com/aretw0/stagehand/pkg/domain"
)

// advance runs steps of the in-flight transition until one has to wait.
// A commit may start a new transition from OnFinished; the loop stops at the flight it began with.
func (o *Orchestrator) advance() {
	f := o.active
	for f != nil && o.active == f {
		if !o.step(f) {
			return
		}
	}
}

// step performs one unit of work and reports whether anything changed.
func (o *Orchestrator) step(f *flight) bool {
	switch s := o.State(); s {
	case domain.StateSwitching:
		return o.stepSwitch(f)
	case domain.StateCommitted:
		o.commit(f)
		return true
	case domain.StateIdle:
		return false
	default:
		if !f.released() {
			return false
		}
		o.enter(f, next(s))
		return true
	}
}

// enter moves the machine to s and starts the work of that state.
func (o *Orchestrator) enter(f *flight, s domain.MachineState) {
	prev := o.State()
	if prev != domain.StateIdle {
		o.emitState(f, domain.EventStateLeave, prev)
	}
	o.setState(s)
	o.logger.Debug("entering state", "id", f.req.ID, "state", s, "identifier", f.entry.Identifier)
	o.emitState(f, domain.EventStateEnter, s)

	if phase, ok := blendPhase(s); ok {
		o.dispatch.RaiseBlend(phase, f.entry.Identifier, f.arm())
		return
	}

	switch s {
	case domain.StateShowingBlend:
		release := f.arm()
		if o.effect == nil {
			o.logger.Warn("no transition effect, skipping show blend", "identifier", f.entry.Identifier)
			release()
			return
		}
		o.effect.Show(release)
	case domain.StateHidingBlend:
		release := f.arm()
		if o.effect == nil {
			o.logger.Warn("no transition effect, skipping hide blend", "identifier", f.entry.Identifier)
			release()
			return
		}
		o.effect.Hide(release)
	case domain.StateSwitching:
		o.beginSwitch(f)
	}
}

// commit is the only place CurrentState changes.
func (o *Orchestrator) commit(f *flight) {
	o.emitState(f, domain.EventStateLeave, domain.StateCommitted)

	o.mu.Lock()
	o.current = f.entry.Identifier
	o.state = domain.StateIdle
	o.target = ""
	o.mu.Unlock()
	o.active = nil

	elapsed := o.clock().Sub(f.started)
	o.logger.Info("transition committed", "id", f.req.ID, "from", f.previous, "to", f.entry.Identifier, "duration", elapsed)
	o.emitOutcome(f, domain.EventCommit, elapsed, nil)

	if f.req.OnFinished != nil {
		f.req.OnFinished(nil)
	}
}

// fail aborts the in-flight transition. Units already swapped stay as they are.
func (o *Orchestrator) fail(f *flight, err error) {
	at := o.State()
	terr := &domain.TransitionError{Identifier: f.entry.Identifier, State: at, Err: err}

	o.mu.Lock()
	o.state = domain.StateIdle
	o.target = ""
	o.mu.Unlock()
	o.active = nil
	if o.effect != nil {
		o.effect.HideImmediate()
	}

	elapsed := o.clock().Sub(f.started)
	o.logger.Error("transition failed", "id", f.req.ID, "to", f.entry.Identifier, "state", at, "err", err)
	o.emitOutcome(f, domain.EventFailure, elapsed, terr)

	if f.req.OnFinished != nil {
		f.req.OnFinished(terr)
	}
}
