package memory

import (
	"slices"
	"sync"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// Effect is a simulated transition effect implementing ports.TransitionEffect.
// Show and Hide complete after a fixed number of ticks (immediately when zero).
// Safe for concurrent use.
type Effect struct {
	mu       sync.Mutex
	state    domain.BlendState
	duration int
	left     int
	target   domain.BlendState
	done     func()
	progress []float64
	calls    []string
}

var (
	_ ports.TransitionEffect = (*Effect)(nil)
	_ ports.Tickable         = (*Effect)(nil)
)

// NewEffect creates an effect whose blends take the given number of ticks.
func NewEffect(ticks int) *Effect {
	return &Effect{state: domain.BlendHidden, duration: ticks}
}

func (e *Effect) ShowImmediate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "show_immediate")
	e.state, e.done = domain.BlendShown, nil
}

func (e *Effect) HideImmediate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "hide_immediate")
	e.state, e.done = domain.BlendHidden, nil
}

func (e *Effect) Show(onComplete func()) {
	e.start("show", domain.BlendShown, onComplete)
}

func (e *Effect) Hide(onComplete func()) {
	e.start("hide", domain.BlendHidden, onComplete)
}

func (e *Effect) SetLoadingProgress(progress float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, progress)
}

// Tick advances a running blend and completes it when its duration elapsed.
func (e *Effect) Tick() {
	e.mu.Lock()
	if e.done == nil {
		e.mu.Unlock()
		return
	}
	e.left--
	if e.left > 0 {
		e.mu.Unlock()
		return
	}
	done := e.finish()
	e.mu.Unlock()
	done()
}

// State returns the current blend state.
func (e *Effect) State() domain.BlendState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns every loading progress value received, in order.
func (e *Effect) Progress() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.progress)
}

// Calls returns the operations invoked on the effect, in order.
func (e *Effect) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

func (e *Effect) start(call string, target domain.BlendState, onComplete func()) {
	if onComplete == nil {
		onComplete = func() {}
	}
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.target, e.done, e.left = target, onComplete, e.duration
	if e.duration > 0 {
		e.mu.Unlock()
		return
	}
	done := e.finish()
	e.mu.Unlock()
	done()
}

// finish must be called with the lock held; the returned callback must run without it.
func (e *Effect) finish() func() {
	done := e.done
	e.state, e.done = e.target, nil
	return done
}
