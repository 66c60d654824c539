package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// CallKind names a host operation recorded in the call log.
type CallKind string

const (
	CallLoad     CallKind = "load"
	CallUnload   CallKind = "unload"
	CallActivate CallKind = "activate"
)

// Call is one entry of the host call log.
type Call struct {
	Kind CallKind
	Unit string
	Mode domain.LoadMode
}

func (c Call) String() string {
	if c.Mode != "" {
		return fmt.Sprintf("%s(%s, %s)", c.Kind, c.Unit, c.Mode)
	}
	return fmt.Sprintf("%s(%s)", c.Kind, c.Unit)
}

// Host is a simulated content loader implementing ports.HostLoader.
// Every Tick advances the pending operations by a fixed step, which makes it
// usable both as a test spy and as the host of the CLI demo.
// Safe for concurrent use.
type Host struct {
	mu        sync.Mutex
	resident  []string
	active    string
	pending   []*handle
	calls     []Call
	failures  map[string]error
	step      float64
	threshold float64
	logger    *slog.Logger
}

var (
	_ ports.HostLoader = (*Host)(nil)
	_ ports.Tickable   = (*Host)(nil)
)

// HostOption configures the Host.
type HostOption func(*Host)

// WithStep sets the progress added to every pending operation per tick.
func WithStep(step float64) HostOption {
	return func(h *Host) {
		if step > 0 {
			h.step = step
		}
	}
}

// WithResident preloads units, the first one becoming active.
func WithResident(units ...string) HostOption {
	return func(h *Host) {
		h.resident = append(h.resident, units...)
		if h.active == "" && len(units) > 0 {
			h.active = units[0]
		}
	}
}

// WithHostLogger configures a logger for the Host.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger
	}
}

// NewHost creates a simulated host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		failures:  make(map[string]error),
		step:      0.25,
		threshold: domain.DefaultReadyThreshold,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fail makes every later operation on unit report err on the next tick.
func (h *Host) Fail(unit string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[unit] = err
}

// LoadUnit starts loading a unit. The handle stops at the ready threshold until activation is allowed.
func (h *Host) LoadUnit(name string, mode domain.LoadMode) (ports.UnitHandle, error) {
	if name == "" {
		return nil, errors.New("load: empty unit name")
	}
	if mode != domain.LoadExclusive && mode != domain.LoadAdditive {
		return nil, fmt.Errorf("load %s: unknown mode %q", name, mode)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, Call{Kind: CallLoad, Unit: name, Mode: mode})
	op := &handle{host: h, unit: name, mode: mode, load: true}
	h.pending = append(h.pending, op)
	h.logger.Debug("unit load issued", "unit", name, "mode", mode)
	return op, nil
}

// UnloadUnit starts unloading a resident unit.
func (h *Host) UnloadUnit(name string) (ports.UnitHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !slices.Contains(h.resident, name) {
		return nil, fmt.Errorf("unload %s: unit is not loaded", name)
	}
	h.calls = append(h.calls, Call{Kind: CallUnload, Unit: name})
	op := &handle{host: h, unit: name}
	h.pending = append(h.pending, op)
	h.logger.Debug("unit unload issued", "unit", name)
	return op, nil
}

// SetActiveUnit marks a resident unit as active.
func (h *Host) SetActiveUnit(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !slices.Contains(h.resident, name) {
		return fmt.Errorf("activate %s: unit is not loaded", name)
	}
	h.calls = append(h.calls, Call{Kind: CallActivate, Unit: name})
	h.active = name
	return nil
}

// LoadedUnits returns the resident units in load order.
func (h *Host) LoadedUnits() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.resident)
}

// ActiveUnit returns the active unit.
func (h *Host) ActiveUnit() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Calls returns a copy of the call log.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.calls)
}

// ResetCalls clears the call log.
func (h *Host) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

// Pending returns the number of unfinished operations.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Tick advances every pending operation by one step.
func (h *Host) Tick() {
	h.mu.Lock()
	defer h.mu.Unlock()

	remaining := h.pending[:0]
	for _, op := range h.pending {
		h.advance(op)
		if !op.done && op.err == nil {
			remaining = append(remaining, op)
		}
	}
	clear(h.pending[len(remaining):])
	h.pending = remaining
}

func (h *Host) advance(op *handle) {
	if err, ok := h.failures[op.unit]; ok {
		op.err = fmt.Errorf("%s %s: %w", op.verb(), op.unit, err)
		h.logger.Error("unit operation failed", "unit", op.unit, "err", err)
		return
	}

	op.progress += h.step
	if !op.load {
		if op.progress >= 1 {
			op.progress, op.done = 1, true
			h.resident = slices.DeleteFunc(h.resident, func(u string) bool { return u == op.unit })
			if h.active == op.unit {
				h.active = ""
			}
		}
		return
	}

	if op.progress >= h.threshold && !op.allow {
		op.progress = h.threshold
		return
	}
	if op.progress >= 1 || (op.allow && op.progress >= h.threshold) {
		op.progress, op.done = 1, true
		if op.mode == domain.LoadExclusive {
			h.resident = []string{op.unit}
			h.active = op.unit
		} else if !slices.Contains(h.resident, op.unit) {
			h.resident = append(h.resident, op.unit)
		}
	}
}

// handle implements ports.UnitHandle. Its fields are guarded by the host mutex.
type handle struct {
	host     *Host
	unit     string
	mode     domain.LoadMode
	load     bool
	progress float64
	allow    bool
	done     bool
	err      error
}

func (op *handle) verb() string {
	if op.load {
		return "load"
	}
	return "unload"
}

func (op *handle) Progress() float64 {
	op.host.mu.Lock()
	defer op.host.mu.Unlock()
	return op.progress
}

func (op *handle) IsDone() bool {
	op.host.mu.Lock()
	defer op.host.mu.Unlock()
	return op.done
}

func (op *handle) SetAllowActivation(allow bool) {
	op.host.mu.Lock()
	defer op.host.mu.Unlock()
	op.allow = allow
}

func (op *handle) Err() error {
	op.host.mu.Lock()
	defer op.host.mu.Unlock()
	return op.err
}
