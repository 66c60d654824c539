// Package barrier provides a counting gate that runs a continuation once
// a fixed number of independent participants have signaled.
package barrier

import (
	"fmt"
	"sync/atomic"

	"github.com/aretw0/stagehand/pkg/domain"
)

// Barrier fires its continuation exactly once, when the expected number of signals arrived.
// Signal may be called from any goroutine.
type Barrier struct {
	expected  int64
	remaining atomic.Int64
	fired     atomic.Bool
	then      func()
}

// New creates a barrier that waits for expected signals before running then.
// With expected == 0 the continuation runs before New returns.
// A negative count panics, like sync.WaitGroup.
func New(expected int, then func()) *Barrier {
	if expected < 0 {
		panic("barrier: negative expected count")
	}
	b := &Barrier{
		expected: int64(expected),
		then:     then,
	}
	b.remaining.Store(int64(expected))
	if expected == 0 {
		b.fire()
	}
	return b
}

// Signal records one participant as done.
// The signal that brings the count to zero runs the continuation on the caller's goroutine.
// Signals beyond the expected count fail with domain.ErrOverSignaled and have no effect.
func (b *Barrier) Signal() error {
	left := b.remaining.Add(-1)
	switch {
	case left == 0:
		b.fire()
	case left < 0:
		b.remaining.Add(1)
		return fmt.Errorf("%w: expected %d", domain.ErrOverSignaled, b.expected)
	}
	return nil
}

// Release is Signal for callers that cannot handle the error.
// It is the shape handed to blend handlers.
func (b *Barrier) Release() {
	_ = b.Signal()
}

// Remaining returns the number of signals still awaited.
func (b *Barrier) Remaining() int {
	if left := b.remaining.Load(); left > 0 {
		return int(left)
	}
	return 0
}

// Expected returns the count the barrier was created with.
func (b *Barrier) Expected() int {
	return int(b.expected)
}

// Fired reports whether the continuation ran.
func (b *Barrier) Fired() bool {
	return b.fired.Load()
}

func (b *Barrier) fire() {
	if !b.fired.CompareAndSwap(false, true) {
		return
	}
	if b.then != nil {
		b.then()
	}
}
