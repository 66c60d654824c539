// Package dispatch holds the table of externally registered phase handlers.
//
// Handlers are registered explicitly during startup and the table is sealed before the
// first transition, after which it is read-only and safe for concurrent reads.
//
// A blend handler receives a release callback and MUST call it exactly once, possibly
// later from another goroutine. A handler that never releases stalls the transition
// forever: no timeout is imposed.
package dispatch

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/barrier"
	"github.com/aretw0/stagehand/pkg/domain"
)

// BlendHandler runs at a blend phase. It must eventually call release.
type BlendHandler func(identifier string, release func())

// SwitchHandler runs synchronously at a switch phase and returns extra unit names
// to add to the in-flight set. It may return nil.
type SwitchHandler func(identifier string, units []string) []string

// Registry maps phases to ordered handler lists.
type Registry struct {
	mu     sync.RWMutex
	blend  map[domain.BlendPhase][]BlendHandler
	swtch  map[domain.SwitchPhase][]SwitchHandler
	sealed atomic.Bool

	useBlend  bool
	useSwitch bool
	logger    *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithBlendCallbacks enables or disables blend handler dispatch. Enabled by default.
func WithBlendCallbacks(enabled bool) Option {
	return func(r *Registry) {
		r.useBlend = enabled
	}
}

// WithSwitchCallbacks enables or disables switch handler dispatch. Enabled by default.
func WithSwitchCallbacks(enabled bool) Option {
	return func(r *Registry) {
		r.useSwitch = enabled
	}
}

// New creates an empty, unsealed registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		blend:     make(map[domain.BlendPhase][]BlendHandler),
		swtch:     make(map[domain.SwitchPhase][]SwitchHandler),
		useBlend:  true,
		useSwitch: true,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterBlendHandler appends a handler to a blend phase.
func (r *Registry) RegisterBlendHandler(phase domain.BlendPhase, h BlendHandler) error {
	if !phase.Valid() {
		return fmt.Errorf("unknown blend phase %q", phase)
	}
	if h == nil {
		return fmt.Errorf("nil handler for blend phase %s", phase)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return fmt.Errorf("%w: cannot register %s handler", domain.ErrRegistrySealed, phase)
	}
	r.blend[phase] = append(r.blend[phase], h)
	return nil
}

// RegisterSwitchHandler appends a handler to a switch phase.
func (r *Registry) RegisterSwitchHandler(phase domain.SwitchPhase, h SwitchHandler) error {
	if !phase.Valid() {
		return fmt.Errorf("unknown switch phase %q", phase)
	}
	if h == nil {
		return fmt.Errorf("nil handler for switch phase %s", phase)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return fmt.Errorf("%w: cannot register %s handler", domain.ErrRegistrySealed, phase)
	}
	r.swtch[phase] = append(r.swtch[phase], h)
	return nil
}

// Seal freezes the table. Registration fails afterwards. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Sealed reports whether the table is frozen.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// BlendCount returns the number of handlers that RaiseBlend would wait for.
func (r *Registry) BlendCount(phase domain.BlendPhase) int {
	if !r.useBlend {
		return 0
	}
	return len(r.blendHandlers(phase))
}

// SwitchCount returns the number of handlers that RaiseSwitch would call.
func (r *Registry) SwitchCount(phase domain.SwitchPhase) int {
	if !r.useSwitch {
		return 0
	}
	return len(r.switchHandlers(phase))
}

// RaiseBlend calls every handler of the phase and runs then once all of them released.
// Handlers run in registration order on the caller's goroutine; then runs on the goroutine
// of the last release. With no handlers, or blend callbacks disabled, then runs before
// RaiseBlend returns.
func (r *Registry) RaiseBlend(phase domain.BlendPhase, identifier string, then func()) {
	var handlers []BlendHandler
	if r.useBlend {
		handlers = r.blendHandlers(phase)
	}
	if len(handlers) == 0 {
		if then != nil {
			then()
		}
		return
	}

	r.logger.Debug("awaiting blend handlers", "phase", phase, "identifier", identifier, "count", len(handlers))
	gate := barrier.New(len(handlers), then)
	for i, h := range handlers {
		index := i
		h(identifier, func() {
			if err := gate.Signal(); err != nil {
				r.logger.Warn("blend handler released more than once",
					"phase", phase, "identifier", identifier, "handler", index, "err", err)
			}
		})
	}
}

// RaiseSwitch calls every handler of the phase with a copy of units and returns the
// extra units they asked for, in call order. Duplicates are not removed here.
func (r *Registry) RaiseSwitch(phase domain.SwitchPhase, identifier string, units []string) []string {
	if !r.useSwitch {
		return nil
	}
	handlers := r.switchHandlers(phase)
	if len(handlers) == 0 {
		return nil
	}

	var extra []string
	for _, h := range handlers {
		view := append([]string(nil), units...)
		extra = append(extra, h(identifier, view)...)
	}
	if len(extra) > 0 {
		r.logger.Debug("switch handlers appended units", "phase", phase, "identifier", identifier, "units", extra)
	}
	return extra
}

func (r *Registry) blendHandlers(phase domain.BlendPhase) []BlendHandler {
	if r.sealed.Load() {
		return r.blend[phase]
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]BlendHandler(nil), r.blend[phase]...)
}

func (r *Registry) switchHandlers(phase domain.SwitchPhase) []SwitchHandler {
	if r.sealed.Load() {
		return r.swtch[phase]
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SwitchHandler(nil), r.swtch[phase]...)
}
