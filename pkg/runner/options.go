package runner

import (
	"log/slog"
	"time"

	"github.com/aretw0/stagehand/pkg/ports"
)

// DefaultQueueSize is the default number of requests that may wait for the loop.
const DefaultQueueSize = 64

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTickInterval sets the loop cadence.
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTickables adds host components ticked before the engine on every frame.
func WithTickables(t ...ports.Tickable) Option {
	return func(r *Runner) {
		for _, c := range t {
			if c != nil {
				r.tickables = append(r.tickables, c)
			}
		}
	}
}

// WithSignals stops the loop on SIGINT or SIGTERM.
func WithSignals(enabled bool) Option {
	return func(r *Runner) {
		r.signals = enabled
	}
}

// WithQueueSize sets how many requests may wait for the loop.
func WithQueueSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.queueSize = n
		}
	}
}
