package runtime

import (
	"fmt"
	"slices"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/progress"
)

type switchStage int

const (
	// stageExclusiveReady waits for the exclusive replacement to be loaded.
	stageExclusiveReady switchStage = iota
	// stageExclusiveDone waits for the exclusive replacement to be active.
	stageExclusiveDone
	// stageReady waits for every handle to be loaded.
	stageReady
	// stageDone waits for every handle to finish.
	stageDone
)

// switchJob is the load/unload batch of one Switching phase.
type switchJob struct {
	stage     switchStage
	agg       *progress.Aggregator
	exclusive ports.UnitHandle
	deferred  []string
	published float64
}

// plan computes the units to unload and to load.
// Units of RetainAlways entries are never unloaded. New units already resident and
// not being unloaded are not loaded again.
func (o *Orchestrator) plan(f *flight, loaded []string) (oldUnits, newUnits []string) {
	if !f.req.RetainCurrent {
		retained := o.scenes.RetainedUnits()
		for _, u := range loaded {
			if _, keep := retained[u]; !keep {
				oldUnits = append(oldUnits, u)
			}
		}
	}
	oldUnits = dedupe(append(oldUnits, o.dispatch.RaiseSwitch(domain.UnloadScenes, f.previous, oldUnits)...))

	wanted := dedupe(append(slices.Clone(f.entry.Units), o.dispatch.RaiseSwitch(domain.LoadScenes, f.entry.Identifier, f.entry.Units)...))
	for _, u := range wanted {
		if slices.Contains(loaded, u) && !slices.Contains(oldUnits, u) {
			continue
		}
		newUnits = append(newUnits, u)
	}
	return oldUnits, newUnits
}

// beginSwitch issues the unloads and the first loads of the batch.
//
// When the unloads would leave nothing resident, the first new unit is loaded as an
// exclusive replacement and fully activated before the remaining units are issued.
func (o *Orchestrator) beginSwitch(f *flight) {
	loaded := o.host.LoadedUnits()
	oldUnits, newUnits := o.plan(f, loaded)
	fullReload := len(oldUnits) >= len(loaded)

	o.logger.Debug("switching units",
		"identifier", f.entry.Identifier,
		"unload", oldUnits,
		"load", newUnits,
		"full_reload", fullReload,
	)

	job := &switchJob{
		stage:     stageReady,
		agg:       progress.New(progress.WithReadyThreshold(o.threshold)),
		published: -1,
	}
	job.agg.Expect(len(oldUnits) + len(newUnits))
	f.sw = job

	for _, u := range oldUnits {
		h, err := o.host.UnloadUnit(u)
		if err != nil {
			o.fail(f, fmt.Errorf("unload %s: %w", u, err))
			return
		}
		job.agg.Add(h)
		o.emitUnit(f, domain.EventUnitUnload, u, "")
	}

	if fullReload && len(newUnits) > 0 {
		h, ok := o.load(f, newUnits[0], domain.LoadExclusive)
		if !ok {
			return
		}
		job.exclusive = h
		job.deferred = newUnits[1:]
		job.stage = stageExclusiveReady
		return
	}
	for _, u := range newUnits {
		if _, ok := o.load(f, u, domain.LoadAdditive); !ok {
			return
		}
	}
}

func (o *Orchestrator) load(f *flight, unit string, mode domain.LoadMode) (ports.UnitHandle, bool) {
	h, err := o.host.LoadUnit(unit, mode)
	if err != nil {
		o.fail(f, fmt.Errorf("load %s: %w", unit, err))
		return nil, false
	}
	f.sw.agg.Add(h)
	o.emitUnit(f, domain.EventUnitLoad, unit, mode)
	return h, true
}

// stepSwitch polls the batch once.
func (o *Orchestrator) stepSwitch(f *flight) bool {
	job := f.sw
	if err := job.agg.Err(); err != nil {
		o.fail(f, err)
		return true
	}
	o.publish(f, job.agg.AggregateProgress())

	switch job.stage {
	case stageExclusiveReady:
		if !job.agg.AllReady() {
			return false
		}
		job.exclusive.SetAllowActivation(true)
		job.stage = stageExclusiveDone
		return true

	case stageExclusiveDone:
		if !job.agg.AllDone() {
			return false
		}
		for _, u := range job.deferred {
			if _, ok := o.load(f, u, domain.LoadAdditive); !ok {
				return true
			}
		}
		job.stage = stageReady
		return true

	case stageReady:
		if !job.agg.AllReady() {
			return false
		}
		job.agg.AllowActivation()
		job.stage = stageDone
		return true

	default:
		if !job.agg.AllDone() {
			return false
		}
		if err := o.host.SetActiveUnit(f.entry.PrimaryUnit()); err != nil {
			o.fail(f, fmt.Errorf("activate %s: %w", f.entry.PrimaryUnit(), err))
			return true
		}
		o.publish(f, job.agg.AggregateProgress())
		o.enter(f, next(domain.StateSwitching))
		return true
	}
}

// publish forwards progress to the effect and the hooks when it moved.
func (o *Orchestrator) publish(f *flight, p float64) {
	if p <= f.sw.published {
		return
	}
	f.sw.published = p
	o.storeProgress(p)
	if o.effect != nil {
		o.effect.SetLoadingProgress(p)
	}
	o.emitProgress(f, p)
}

// dedupe keeps the first occurrence of every non-empty name.
func dedupe(units []string) []string {
	seen := make(map[string]struct{}, len(units))
	out := units[:0:0]
	for _, u := range units {
		if _, dup := seen[u]; dup || u == "" {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
