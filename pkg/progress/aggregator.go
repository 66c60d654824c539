// Package progress aggregates the progress of the unit handles of one load/unload batch.
package progress

import (
	"errors"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// Aggregator tracks the handles of one batch.
// It holds non-owning references only and is meant to be polled from the orchestrator goroutine.
type Aggregator struct {
	handles   []ports.UnitHandle
	planned   int
	threshold float64
	peak      float64
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithReadyThreshold sets the progress at which a handle counts as ready.
func WithReadyThreshold(threshold float64) Option {
	return func(a *Aggregator) {
		if threshold > 0 && threshold <= 1 {
			a.threshold = threshold
		}
	}
}

// New creates an empty aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{threshold: domain.DefaultReadyThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Expect declares how many handles the batch will hold in total.
// Handles not added yet count as zero progress, so the aggregate never jumps backwards
// when a staged batch issues its handles in several steps.
func (a *Aggregator) Expect(n int) {
	if n > a.planned {
		a.planned = n
	}
}

// Add tracks a handle. Nil handles are ignored.
func (a *Aggregator) Add(h ports.UnitHandle) {
	if h == nil {
		return
	}
	a.handles = append(a.handles, h)
}

// Len returns the number of tracked handles.
func (a *Aggregator) Len() int {
	return len(a.handles)
}

// Threshold returns the ready threshold.
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// AggregateProgress returns the unweighted mean progress of the batch.
// Every unit weighs the same regardless of its size. An empty batch is complete.
// The value is clamped to be non-decreasing across calls.
func (a *Aggregator) AggregateProgress() float64 {
	n := a.planned
	if len(a.handles) > n {
		n = len(a.handles)
	}
	if n == 0 {
		return 1
	}

	var sum float64
	for _, h := range a.handles {
		sum += clamp(h.Progress())
	}
	mean := sum / float64(n)
	if mean > a.peak {
		a.peak = mean
	}
	return a.peak
}

// AllReady reports whether every tracked handle crossed the ready threshold.
// Handles that are already done count as ready.
func (a *Aggregator) AllReady() bool {
	for _, h := range a.handles {
		if !h.IsDone() && h.Progress() < a.threshold {
			return false
		}
	}
	return true
}

// AllDone reports whether every tracked handle is done.
func (a *Aggregator) AllDone() bool {
	for _, h := range a.handles {
		if !h.IsDone() {
			return false
		}
	}
	return true
}

// AllowActivation flips the activation flag of every tracked handle.
func (a *Aggregator) AllowActivation() {
	for _, h := range a.handles {
		h.SetAllowActivation(true)
	}
}

// Err joins the failures reported by the tracked handles.
func (a *Aggregator) Err() error {
	var errs []error
	for _, h := range a.handles {
		if err := h.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset forgets every handle so the aggregator can serve the next batch.
func (a *Aggregator) Reset() {
	a.handles = nil
	a.planned = 0
	a.peak = 0
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
