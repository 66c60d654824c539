package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// ErrStopped is returned for requests that reach a runner which is not running.
var ErrStopped = errors.New("runner stopped")

// Engine is the part of the engine the loop drives.
// It is implemented by *stagehand.Engine.
type Engine interface {
	Submit(ctx context.Context, req domain.TransitionRequest) error
	Tick()
	Busy() bool
}

// Runner ticks the engine and serialises transition requests onto its goroutine.
type Runner struct {
	engine    Engine
	tickables []ports.Tickable
	interval  time.Duration
	signals   bool
	queueSize int
	logger    *slog.Logger

	requests chan *job
	running  atomic.Bool
	frames   atomic.Uint64

	mu sync.Mutex
	// stopped belongs to the active Run and is closed before it drains the queue.
	stopped chan struct{}
}

type job struct {
	ctx      context.Context
	req      domain.TransitionRequest
	accepted chan error
	done     chan error
	stopped  <-chan struct{}
}

// New creates a runner for engine.
func New(engine Engine, opts ...Option) *Runner {
	r := &Runner{
		engine:    engine,
		interval:  domain.DefaultTickInterval,
		queueSize: DefaultQueueSize,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.requests = make(chan *job, r.queueSize)
	return r
}

// Running reports whether Run is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Frames returns the number of ticks performed so far.
func (r *Runner) Frames() uint64 {
	return r.frames.Load()
}

// Run executes the loop until ctx is cancelled (or a signal arrives when enabled).
// Requests still queued when the loop stops fail with ErrStopped. A transition in flight
// at that moment is abandoned: its completion channel never receives, and Transition
// returns ErrStopped.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped != nil {
		r.mu.Unlock()
		return errors.New("runner already running")
	}
	stopped := make(chan struct{})
	r.stopped = stopped
	r.running.Store(true)
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.stopped = nil
		r.running.Store(false)
		r.mu.Unlock()
	}()

	if r.signals {
		sm := NewSignalManager(ctx)
		defer sm.Stop()
		ctx = sm.Context()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var queue []*job
	r.logger.Debug("runner started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			close(stopped)
			r.drain(queue)
			r.logger.Debug("runner stopped", "frames", r.frames.Load())
			return nil
		case j := <-r.requests:
			queue = append(queue, j)
		case <-ticker.C:
			r.tick()
		}
		queue = r.dispatch(queue)
	}
}

// Submit hands req to the loop and waits until the engine started or rejected it.
// The returned channel receives the completion result once (nil on commit).
// Requests are started in submission order, one at a time.
func (r *Runner) Submit(ctx context.Context, req domain.TransitionRequest) (<-chan error, error) {
	j, err := r.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return j.done, nil
}

// Transition submits req and blocks until it committed, failed, ctx ended or the loop stopped.
func (r *Runner) Transition(ctx context.Context, req domain.TransitionRequest) error {
	j, err := r.submit(ctx, req)
	if err != nil {
		return err
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-j.stopped:
		select {
		case err := <-j.done:
			return err
		default:
			return ErrStopped
		}
	}
}

func (r *Runner) submit(ctx context.Context, req domain.TransitionRequest) (*job, error) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped == nil {
		return nil, ErrStopped
	}

	j := &job{
		ctx:      ctx,
		req:      req,
		accepted: make(chan error, 1),
		done:     make(chan error, 1),
		stopped:  stopped,
	}
	select {
	case r.requests <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-stopped:
		return nil, ErrStopped
	}
	select {
	case err := <-j.accepted:
		if err != nil {
			return nil, err
		}
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-stopped:
		// The loop may have answered just before it stopped.
		select {
		case err := <-j.accepted:
			if err != nil {
				return nil, err
			}
			return j, nil
		default:
			return nil, ErrStopped
		}
	}
}

func (r *Runner) tick() {
	for _, t := range r.tickables {
		t.Tick()
	}
	r.engine.Tick()
	r.frames.Add(1)
}

// dispatch starts queued requests while the engine is idle.
func (r *Runner) dispatch(queue []*job) []*job {
	for len(queue) > 0 && !r.engine.Busy() {
		j := queue[0]
		queue = queue[1:]
		if isClosed(j.stopped) {
			// Left in the buffer by an earlier Run; its caller already got ErrStopped.
			continue
		}
		if err := j.ctx.Err(); err != nil {
			j.accepted <- err
			continue
		}

		req := j.req
		onFinished := req.OnFinished
		req.OnFinished = func(err error) {
			if onFinished != nil {
				onFinished(err)
			}
			j.done <- err
		}
		err := r.engine.Submit(j.ctx, req)
		if err != nil {
			r.logger.Warn("transition rejected", "identifier", req.Identifier, "err", err)
			err = fmt.Errorf("transition to %q rejected: %w", req.Identifier, err)
		}
		j.accepted <- err
	}
	return queue
}

func (r *Runner) drain(queue []*job) {
	for {
		select {
		case j := <-r.requests:
			queue = append(queue, j)
		default:
			for _, j := range queue {
				j.accepted <- ErrStopped
			}
			return
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
