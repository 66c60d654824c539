package runtime

import (
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
)

func (o *Orchestrator) base(f *flight, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp:    o.clock(),
		Type:         t,
		TransitionID: f.req.ID,
		Identifier:   f.entry.Identifier,
	}
}

func (o *Orchestrator) emitState(f *flight, t domain.EventType, s domain.MachineState) {
	hook := o.hooks.OnStateEnter
	if t == domain.EventStateLeave {
		hook = o.hooks.OnStateLeave
	}
	if hook == nil {
		return
	}
	hook(f.ctx, &domain.StateEvent{EventBase: o.base(f, t), State: s})
}

func (o *Orchestrator) emitUnit(f *flight, t domain.EventType, unit string, mode domain.LoadMode) {
	hook := o.hooks.OnUnitLoad
	if t == domain.EventUnitUnload {
		hook = o.hooks.OnUnitUnload
	}
	if hook == nil {
		return
	}
	hook(f.ctx, &domain.UnitEvent{EventBase: o.base(f, t), Unit: unit, Mode: mode})
}

func (o *Orchestrator) emitProgress(f *flight, progress float64) {
	if o.hooks.OnProgress == nil {
		return
	}
	o.hooks.OnProgress(f.ctx, &domain.ProgressEvent{EventBase: o.base(f, domain.EventProgress), Progress: progress})
}

func (o *Orchestrator) emitOutcome(f *flight, t domain.EventType, elapsed time.Duration, err error) {
	hook := o.hooks.OnCommit
	if t == domain.EventFailure {
		hook = o.hooks.OnFailure
	}
	if hook == nil {
		return
	}
	hook(f.ctx, &domain.OutcomeEvent{
		EventBase: o.base(f, t),
		Previous:  f.previous,
		Duration:  elapsed,
		Err:       err,
	})
}
