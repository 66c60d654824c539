package stagehand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/internal/runtime"
	"github.com/aretw0/stagehand/pkg/dispatch"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/params"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/registry"
)

// DefaultSnapshotKey is the key the committed state is persisted under.
const DefaultSnapshotKey = "stagehand"

// Engine is the high-level entry point for the Stagehand library.
// It wraps the internal orchestrator and wires the registries, the parameter store
// and persistence together.
type Engine struct {
	orchestrator *runtime.Orchestrator
	scenes       *registry.Registry
	params       *params.Store
	handlers     *dispatch.Registry
	host         ports.HostLoader

	source      ports.SceneSource
	entries     []domain.SceneEntry
	effect      ports.TransitionEffect
	store       ports.StateStore
	snapshotKey string

	paramOpts    []params.StoreOption
	dispatchOpts []dispatch.Option
	runtimeOpts  []runtime.Option
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	Name         string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithName labels the engine in logs.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// WithLifecycleHooks registers observability hooks. It may be given several times.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithScenes adds scene entries to the registry.
func WithScenes(entries ...domain.SceneEntry) Option {
	return func(e *Engine) {
		e.entries = append(e.entries, entries...)
	}
}

// WithSceneSource reads scene entries from a source (e.g. a Loam directory) at construction.
// Entries given with WithScenes come first.
func WithSceneSource(src ports.SceneSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithEffect sets the transition effect played around every transition.
func WithEffect(effect ports.TransitionEffect) Option {
	return func(e *Engine) {
		e.effect = effect
	}
}

// WithStateStore persists every committed state under key, enabling Resume.
// An empty key falls back to DefaultSnapshotKey.
func WithStateStore(store ports.StateStore, key string) Option {
	return func(e *Engine) {
		e.store = store
		if key != "" {
			e.snapshotKey = key
		}
	}
}

// WithInitialData registers the initial data of a parameter type.
func WithInitialData(typeName string, src params.InitialDataSource) Option {
	return func(e *Engine) {
		e.paramOpts = append(e.paramOpts, params.WithInitialData(typeName, src))
	}
}

// WithBlendCallbacks enables or disables blend handler dispatch.
func WithBlendCallbacks(enabled bool) Option {
	return func(e *Engine) {
		e.dispatchOpts = append(e.dispatchOpts, dispatch.WithBlendCallbacks(enabled))
	}
}

// WithSwitchCallbacks enables or disables switch handler dispatch.
func WithSwitchCallbacks(enabled bool) Option {
	return func(e *Engine) {
		e.dispatchOpts = append(e.dispatchOpts, dispatch.WithSwitchCallbacks(enabled))
	}
}

// WithReadyThreshold sets the progress at which a loading unit counts as ready (default 0.9).
func WithReadyThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithReadyThreshold(threshold))
	}
}

// WithStartupBlendState selects whether the effect starts shown or hidden.
func WithStartupBlendState(state domain.BlendState) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithStartupBlendState(state))
	}
}

// WithInitialState sets the current state identifier without loading anything.
func WithInitialState(identifier string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithInitialState(identifier))
	}
}

// New initializes a new Engine driving the given host loader.
func New(host ports.HostLoader, opts ...Option) (*Engine, error) {
	if host == nil {
		return nil, errors.New("a host loader is required")
	}
	eng := &Engine{
		host:        host,
		snapshotKey: DefaultSnapshotKey,
	}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to the components, which would overwrite their default)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("engine", eng.Name)
	}

	entries := eng.entries
	if eng.source != nil {
		loaded, err := eng.source.ListScenes(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to read scenes: %w", err)
		}
		entries = append(entries, loaded...)
	}
	eng.scenes = registry.New(entries...)
	for _, p := range eng.scenes.Validate() {
		eng.logger.Warn("scene registry problem", "err", p)
	}

	eng.params = params.NewStore(append([]params.StoreOption{params.WithLogger(eng.logger)}, eng.paramOpts...)...)
	eng.handlers = dispatch.New(append([]dispatch.Option{dispatch.WithLogger(eng.logger)}, eng.dispatchOpts...)...)

	hooks := eng.hooks
	if eng.store != nil {
		hooks = hooks.Merge(domain.LifecycleHooks{OnCommit: eng.persist})
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(hooks),
	}
	if eng.effect != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithEffect(eng.effect))
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.orchestrator = runtime.New(eng.scenes, eng.params, eng.handlers, host, runtimeOpts...)
	return eng, nil
}

// TransitionOption customizes a single transition request.
type TransitionOption func(*domain.TransitionRequest)

// RetainCurrent keeps every currently loaded unit resident.
func RetainCurrent() TransitionOption {
	return func(r *domain.TransitionRequest) {
		r.RetainCurrent = true
	}
}

// Overwrite controls whether the parameter merge may replace existing keys (default true).
func Overwrite(overwrite bool) TransitionOption {
	return func(r *domain.TransitionRequest) {
		r.Overwrite = overwrite
	}
}

// OnFinished registers the completion callback. It receives nil on commit.
func OnFinished(fn func(error)) TransitionOption {
	return func(r *domain.TransitionRequest) {
		r.OnFinished = fn
	}
}

// WithTransitionID sets the correlation ID of the lifecycle events.
func WithTransitionID(id string) TransitionOption {
	return func(r *domain.TransitionRequest) {
		r.ID = id
	}
}

// Request builds a transition request without starting it.
func Request(identifier string, parameters domain.ParameterSource, opts ...TransitionOption) domain.TransitionRequest {
	req := domain.TransitionRequest{
		Identifier: identifier,
		Parameters: parameters,
		Overwrite:  true,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Transition starts a transition to identifier. Parameters may be nil.
// Returned errors are pre-flight; see runtime.Orchestrator.Transition.
// Must be called from the goroutine that calls Tick.
func (e *Engine) Transition(ctx context.Context, identifier string, parameters domain.ParameterSource, opts ...TransitionOption) error {
	return e.orchestrator.Transition(ctx, Request(identifier, parameters, opts...))
}

// Submit starts a prepared request. Must be called from the goroutine that calls Tick.
func (e *Engine) Submit(ctx context.Context, req domain.TransitionRequest) error {
	return e.orchestrator.Transition(ctx, req)
}

// Tick advances the in-flight transition. Call it once per frame.
func (e *Engine) Tick() {
	e.orchestrator.Tick()
}

// CurrentState returns the identifier of the last committed state.
func (e *Engine) CurrentState() string {
	return e.orchestrator.CurrentState()
}

// State returns the machine state.
func (e *Engine) State() domain.MachineState {
	return e.orchestrator.State()
}

// Target returns the identifier of the transition in flight, or "" while idle.
func (e *Engine) Target() string {
	return e.orchestrator.Target()
}

// Busy reports whether a transition is in flight.
func (e *Engine) Busy() bool {
	return e.orchestrator.Busy()
}

// Progress returns the last published loading progress.
func (e *Engine) Progress() float64 {
	return e.orchestrator.Progress()
}

// Registry returns the scene registry.
func (e *Engine) Registry() *registry.Registry {
	return e.scenes
}

// Parameters returns the parameter store.
func (e *Engine) Parameters() *params.Store {
	return e.params
}

// Dispatch returns the handler registry. Handlers must be registered before the first transition.
func (e *Engine) Dispatch() *dispatch.Registry {
	return e.handlers
}

// Host returns the host loader.
func (e *Engine) Host() ports.HostLoader {
	return e.host
}

// Watch returns a channel that signals when the scene source changes.
// Returns error if the source does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := e.source.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current scene source does not support watching")
}

// Resume restores the persisted parameters and starts a transition to the last committed state.
// It reports false when nothing was persisted yet.
func (e *Engine) Resume(ctx context.Context, opts ...TransitionOption) (bool, error) {
	if e.store == nil {
		return false, errors.New("no state store configured")
	}
	snap, err := e.store.Load(ctx, e.snapshotKey)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	entry, err := e.scenes.Resolve(snap.Current)
	if err != nil {
		return false, fmt.Errorf("snapshot points to an unknown scene: %w", err)
	}
	if err := e.params.Restore(snap.Parameters, true); err != nil {
		return false, fmt.Errorf("failed to restore parameters: %w", err)
	}

	var src domain.ParameterSource
	if data, ok := snap.Parameters[entry.ParameterType]; ok && entry.ParameterType != "" {
		src = params.FromMap(entry.ParameterType, data)
	}
	e.logger.Info("resuming", "identifier", snap.Current, "committed_at", snap.CommittedAt)
	if err := e.Transition(ctx, snap.Current, src, opts...); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) persist(ctx context.Context, evt *domain.OutcomeEvent) {
	snap := &domain.Snapshot{
		Current:     evt.Identifier,
		Parameters:  e.params.Snapshot(),
		CommittedAt: evt.Timestamp.UTC().Truncate(time.Millisecond),
	}
	if err := e.store.Save(ctx, e.snapshotKey, snap); err != nil {
		e.logger.Error("failed to persist committed state", "identifier", evt.Identifier, "err", err)
		return
	}
	e.logger.Debug("state saved", "key", e.snapshotKey, "identifier", evt.Identifier)
}
