// Package runtime implements the transition orchestrator: the linear state machine that
// drives a scene transition from Idle through the blend and switching phases to Committed.
//
// The orchestrator is cooperative and tick-driven. Transition and Tick must be called from
// a single goroutine (the host loop); the only concurrency it tolerates is handlers and
// effects releasing their gates from other goroutines, which merely sets a flag observed
// on the next Tick.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/dispatch"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/params"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/google/uuid"
)

// Orchestrator sequences transitions between scene states.
type Orchestrator struct {
	scenes   *registry.Registry
	params   *params.Store
	dispatch *dispatch.Registry
	host     ports.HostLoader
	effect   ports.TransitionEffect

	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	threshold float64
	startup   domain.BlendState
	clock     func() time.Time
	newID     func() string

	mu      sync.RWMutex
	state   domain.MachineState
	current string
	target  string

	progress atomic.Uint64 // math.Float64bits of the last published progress
	active   *flight
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger configures a logger for the Orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithEffect sets the transition effect. Without one every blend step passes through.
func WithEffect(effect ports.TransitionEffect) Option {
	return func(o *Orchestrator) {
		o.effect = effect
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithReadyThreshold sets the progress at which a loading unit counts as ready.
func WithReadyThreshold(threshold float64) Option {
	return func(o *Orchestrator) {
		if threshold > 0 && threshold <= 1 {
			o.threshold = threshold
		}
	}
}

// WithStartupBlendState selects whether the effect starts shown (default) or hidden.
func WithStartupBlendState(state domain.BlendState) Option {
	return func(o *Orchestrator) {
		o.startup = state
	}
}

// WithInitialState sets the current state identifier without loading anything,
// for hosts that boot with their first scene already resident.
func WithInitialState(identifier string) Option {
	return func(o *Orchestrator) {
		o.current = identifier
	}
}

// WithClock overrides the time source of lifecycle events.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithIDGenerator overrides how transition IDs are generated when a request carries none.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		o.newID = gen
	}
}

// New creates an idle orchestrator.
// A nil parameter store or dispatch registry is replaced by an empty one.
func New(scenes *registry.Registry, store *params.Store, handlers *dispatch.Registry, host ports.HostLoader, opts ...Option) *Orchestrator {
	if store == nil {
		store = params.NewStore()
	}
	if handlers == nil {
		handlers = dispatch.New()
	}
	o := &Orchestrator{
		scenes:    scenes,
		params:    store,
		dispatch:  handlers,
		host:      host,
		logger:    logging.NewNop(),
		threshold: domain.DefaultReadyThreshold,
		startup:   domain.BlendShown,
		clock:     time.Now,
		newID:     uuid.NewString,
		state:     domain.StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.effect == nil {
		o.logger.Warn("no transition effect configured, transitions run unblended")
	} else if o.startup == domain.BlendHidden {
		o.effect.HideImmediate()
	} else {
		o.effect.ShowImmediate()
	}
	return o
}

// CurrentState returns the identifier of the last committed state.
// Safe to call from any goroutine.
func (o *Orchestrator) CurrentState() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// State returns the machine state. Safe to call from any goroutine.
func (o *Orchestrator) State() domain.MachineState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Target returns the identifier of the transition in flight, or "" while idle.
// Safe to call from any goroutine.
func (o *Orchestrator) Target() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.target
}

// Busy reports whether a transition is in flight. Safe to call from any goroutine.
func (o *Orchestrator) Busy() bool {
	return o.State() != domain.StateIdle
}

// Progress returns the last loading progress published during switching.
// Safe to call from any goroutine.
func (o *Orchestrator) Progress() float64 {
	return math.Float64frombits(o.progress.Load())
}

// Registry returns the scene registry.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.scenes
}

// Parameters returns the parameter store.
func (o *Orchestrator) Parameters() *params.Store {
	return o.params
}

// Dispatch returns the handler registry.
func (o *Orchestrator) Dispatch() *dispatch.Registry {
	return o.dispatch
}

// Transition validates req and starts the transition.
//
// Every error returned here is pre-flight: nothing was loaded, unloaded or merged.
// Failures after the start are reported to req.OnFinished as a *domain.TransitionError
// and leave CurrentState unchanged. The transition advances as far as it can before
// Transition returns; the rest happens on later Ticks.
func (o *Orchestrator) Transition(ctx context.Context, req domain.TransitionRequest) error {
	if o.Busy() {
		return fmt.Errorf("%w: cannot start %q", domain.ErrTransitionInProgress, req.Identifier)
	}

	entry, err := o.scenes.Resolve(req.Identifier)
	if err != nil {
		return err
	}
	if len(entry.Units) == 0 {
		return fmt.Errorf("%w: %q", domain.ErrEmptyScene, entry.Identifier)
	}
	if err := validateParameters(entry, req.Parameters); err != nil {
		return err
	}
	if err := o.params.UpdateFor(req.Parameters, req.Overwrite); err != nil {
		return fmt.Errorf("failed to merge parameters for %q: %w", entry.Identifier, err)
	}

	if !o.dispatch.Sealed() {
		o.dispatch.Seal()
	}
	if req.ID == "" {
		req.ID = o.newID()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	f := &flight{
		ctx:      ctx,
		req:      req,
		entry:    entry,
		previous: o.CurrentState(),
		started:  o.clock(),
	}
	o.active = f
	o.mu.Lock()
	o.target = entry.Identifier
	o.mu.Unlock()
	o.storeProgress(0)
	o.logger.Info("transition started", "id", req.ID, "from", f.previous, "to", entry.Identifier)

	o.enter(f, domain.StatePreShowBlend)
	o.advance()
	return nil
}

// Tick polls the in-flight transition and advances it as far as possible.
// It is a no-op while idle.
func (o *Orchestrator) Tick() {
	o.advance()
}

func validateParameters(entry domain.SceneEntry, src domain.ParameterSource) error {
	typeName := ""
	if src != nil {
		typeName = src.TypeName()
	}
	if typeName == "" {
		if !entry.ParameterAllowNull {
			return fmt.Errorf("%w: %q requires parameters of type %q", domain.ErrInvalidParameter, entry.Identifier, entry.ParameterType)
		}
		return nil
	}
	if entry.ParameterType == "" {
		return fmt.Errorf("%w: %q takes no parameters, got %q", domain.ErrInvalidParameter, entry.Identifier, typeName)
	}
	if !entry.AcceptsType(typeName) {
		return fmt.Errorf("%w: %q accepts %q, got %q", domain.ErrInvalidParameter, entry.Identifier, entry.ParameterType, typeName)
	}
	return nil
}

func (o *Orchestrator) setState(s domain.MachineState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) storeProgress(p float64) {
	o.progress.Store(math.Float64bits(p))
}
