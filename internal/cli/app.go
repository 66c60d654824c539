// Package cli wires the engine, the simulated host and the optional adapters from settings
// for the stagehand command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/adapters/file"
	httpAdapter "github.com/aretw0/stagehand/pkg/adapters/http"
	"github.com/aretw0/stagehand/pkg/adapters/loam"
	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/adapters/mqtt"
	"github.com/aretw0/stagehand/pkg/adapters/redis"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/observability"
	"github.com/aretw0/stagehand/pkg/params"
	"github.com/aretw0/stagehand/pkg/persistence/middleware"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/runner"
	"github.com/aretw0/stagehand/pkg/settings"
)

// ErrSystemDisabled is returned when the settings turn the system off.
var ErrSystemDisabled = errors.New("stagehand is disabled (use_system: false)")

// App is a fully wired engine with its simulated host and loop.
type App struct {
	Settings  *settings.Settings
	Engine    *stagehand.Engine
	Host      *memory.Host
	Effect    *memory.Effect
	Runner    *runner.Runner
	Metrics   *observability.Metrics
	Streams   *httpAdapter.StreamManager
	Forwarder *mqtt.Forwarder
	Logger    *slog.Logger

	closers []io.Closer
}

// BuildOptions adjusts Build for a specific command.
type BuildOptions struct {
	// Logger overrides the logger derived from the settings level.
	Logger *slog.Logger
	// Hooks are merged after the built-in hooks.
	Hooks domain.LifecycleHooks
	// Publisher replaces the MQTT client, mostly for tests.
	Publisher ports.EventPublisher
}

// Build creates the App described by s.
func Build(ctx context.Context, s *settings.Settings, opts BuildOptions) (*App, error) {
	if !s.UseSystem {
		return nil, ErrSystemDisabled
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(s.Level(), logging.WithFormat(logging.Format(s.LogFormat)))
	}

	app := &App{
		Settings: s,
		Logger:   logger,
		Host:     memory.NewHost(memory.WithStep(s.Simulation.Step), memory.WithHostLogger(logger)),
		Effect:   memory.NewEffect(s.Simulation.BlendTicks),
		Streams:  httpAdapter.NewStreamManager(logger),
	}

	hooks := observability.LogHooks(logger).Merge(app.Streams.Hooks())
	if s.Metrics.Enabled {
		app.Metrics = observability.NewMetrics(s.Metrics.Namespace)
		hooks = hooks.Merge(app.Metrics.Hooks())
	}
	if pub, err := app.publisher(opts.Publisher); err != nil {
		return nil, err
	} else if pub != nil {
		app.Forwarder = mqtt.NewForwarder(pub,
			mqtt.WithTopicPrefix(s.MQTT.TopicPrefix),
			mqtt.WithLogger(logger),
		)
		hooks = hooks.Merge(app.Forwarder.Hooks())
	}
	hooks = hooks.Merge(opts.Hooks)

	engineOpts := []stagehand.Option{
		stagehand.WithLogger(logger),
		stagehand.WithLifecycleHooks(hooks),
		stagehand.WithEffect(app.Effect),
		stagehand.WithScenes(s.Scenes...),
		stagehand.WithBlendCallbacks(s.UseBlendCallbacks),
		stagehand.WithSwitchCallbacks(s.UseSwitchCallbacks),
		stagehand.WithReadyThreshold(s.ReadyThreshold),
		stagehand.WithStartupBlendState(s.StartupBlendState),
	}

	initial := make(map[string]map[string]any)
	if s.ScenesDir != "" {
		src, err := loam.Open(s.ScenesDir)
		if err != nil {
			return nil, err
		}
		defaults, err := src.InitialData(ctx)
		if err != nil {
			return nil, err
		}
		mergeInitial(initial, defaults)
		engineOpts = append(engineOpts, stagehand.WithSceneSource(src))
	}
	mergeInitial(initial, s.ParameterInitialData)
	for typeName, data := range initial {
		engineOpts = append(engineOpts, stagehand.WithInitialData(typeName, params.InitialMap(data)))
	}

	store, err := app.stateStore()
	if err != nil {
		app.Close()
		return nil, err
	}
	if store != nil {
		engineOpts = append(engineOpts, stagehand.WithStateStore(store, s.Store.Key))
	}

	eng, err := stagehand.New(app.Host, engineOpts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = eng
	app.Runner = runner.New(eng,
		runner.WithLogger(logger),
		runner.WithTickInterval(s.TickInterval),
		runner.WithTickables(app.Host, app.Effect),
	)
	return app, nil
}

func (a *App) stateStore() (ports.StateStore, error) {
	st := a.Settings.Store
	var store ports.StateStore
	switch st.Backend {
	case "", "memory":
		store = memory.NewStore()
	case "file":
		store = file.New(st.Path)
	case "redis":
		rs := redis.New(st.Redis.Addr, st.Redis.Password, st.Redis.DB,
			redis.WithPrefix(st.Redis.Prefix+"snapshot:"),
			redis.WithTTL(st.Redis.TTL),
		)
		a.closers = append(a.closers, rs)
		store = rs
	default:
		return nil, fmt.Errorf("unknown store backend %q", st.Backend)
	}

	mws, err := storeMiddlewares(st)
	if err != nil {
		return nil, err
	}
	return middleware.Chain(store, mws...), nil
}

// storeMiddlewares masks before it encrypts, so sealed snapshots never hold masked keys.
func storeMiddlewares(st settings.StoreSettings) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(st.MaskKeys) > 0 {
		mask, err := middleware.NewMaskMiddleware(st.MaskKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mask)
	}
	if st.EncryptionKey != "" {
		cfg := middleware.EncryptionConfig{}
		key, err := middleware.DecodeKey(st.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		cfg.ActiveKey = key
		for i, encoded := range st.FallbackKeys {
			k, err := middleware.DecodeKey(encoded)
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
			}
			cfg.FallbackKeys = append(cfg.FallbackKeys, k)
		}
		enc, err := middleware.NewEncryptionMiddleware(cfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

func (a *App) publisher(override ports.EventPublisher) (ports.EventPublisher, error) {
	if override != nil {
		return override, nil
	}
	m := a.Settings.MQTT
	if m.Broker == "" {
		return nil, nil
	}
	client := mqtt.NewClient(mqtt.Config{
		Broker:   m.Broker,
		ClientID: m.ClientID,
		Username: m.Username,
		Password: m.Password,
		QoS:      m.QoS,
	})
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", m.Broker, err)
	}
	a.closers = append(a.closers, client)
	return client, nil
}

// Start runs the loop (and the event forwarder) in the background until ctx is done.
// The returned func waits for both to stop.
func (a *App) Start(ctx context.Context) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Runner.Run(ctx); err != nil {
			a.Logger.Error("runner stopped", "err", err)
		}
	}()

	fwdDone := make(chan struct{})
	if a.Forwarder != nil {
		go func() {
			defer close(fwdDone)
			a.Forwarder.Run(ctx)
		}()
	} else {
		close(fwdDone)
	}

	for i := 0; i < 100 && !a.Runner.Running(); i++ {
		select {
		case <-done:
			return func() { <-fwdDone }
		case <-time.After(time.Millisecond):
		}
	}
	return func() {
		<-done
		<-fwdDone
	}
}

// Boot resumes the persisted state or, when nothing was persisted, starts a transition
// to the configured initial state. It must run before Start, while nothing else drives the
// engine. It returns the target of the boot transition and a channel receiving its outcome;
// the channel is nil when there is nothing to do.
func (a *App) Boot(ctx context.Context) (string, <-chan error, error) {
	finished := make(chan error, 1)
	onFinished := stagehand.OnFinished(func(err error) { finished <- err })

	resumed, err := a.Engine.Resume(ctx, onFinished)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resume: %w", err)
	}
	if resumed {
		return a.Engine.Target(), finished, nil
	}
	if a.Settings.InitialState == "" {
		return "", nil, nil
	}
	if err := a.Engine.Transition(ctx, a.Settings.InitialState, nil, onFinished); err != nil {
		return "", nil, fmt.Errorf("failed to enter initial state %q: %w", a.Settings.InitialState, err)
	}
	return a.Settings.InitialState, finished, nil
}

// Await waits for a boot channel returned by Boot.
func Await(ctx context.Context, finished <-chan error) error {
	if finished == nil {
		return nil
	}
	select {
	case err := <-finished:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the connections opened by Build.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}

func mergeInitial(dst, src map[string]map[string]any) {
	for typeName, data := range src {
		m, ok := dst[typeName]
		if !ok {
			m = make(map[string]any, len(data))
			dst[typeName] = m
		}
		for k, v := range data {
			m[k] = v
		}
	}
}
