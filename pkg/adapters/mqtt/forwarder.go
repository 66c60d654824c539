package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "stagehand"

// DefaultQueueSize bounds the events waiting to be published.
const DefaultQueueSize = 256

type message struct {
	topic   string
	payload []byte
}

// outcome adds the error text that OutcomeEvent leaves out of its JSON form.
type outcome struct {
	*domain.OutcomeEvent
	Error string `json:"error,omitempty"`
}

// Forwarder turns lifecycle hooks into published messages.
// Hooks only enqueue, so a slow broker never stalls the tick loop; Run drains the queue.
type Forwarder struct {
	pub    ports.EventPublisher
	prefix string
	logger *slog.Logger
	queue  chan message

	mu      sync.Mutex
	dropped int
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithTopicPrefix sets the prefix of every topic ("<prefix>/<event type>").
func WithTopicPrefix(prefix string) ForwarderOption {
	return func(f *Forwarder) {
		f.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithLogger sets the logger used for publish failures.
func WithLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) ForwarderOption {
	return func(f *Forwarder) {
		if n > 0 {
			f.queue = make(chan message, n)
		}
	}
}

// NewForwarder creates a forwarder publishing through pub.
func NewForwarder(pub ports.EventPublisher, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		pub:    pub,
		prefix: DefaultTopicPrefix,
		logger: logging.NewNop(),
		queue:  make(chan message, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Hooks returns the lifecycle hooks that feed the forwarder.
func (f *Forwarder) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) { f.enqueue(e.Type, e) },
		OnUnitLoad:   func(_ context.Context, e *domain.UnitEvent) { f.enqueue(e.Type, e) },
		OnUnitUnload: func(_ context.Context, e *domain.UnitEvent) { f.enqueue(e.Type, e) },
		OnProgress:   func(_ context.Context, e *domain.ProgressEvent) { f.enqueue(e.Type, e) },
		OnCommit: func(_ context.Context, e *domain.OutcomeEvent) {
			f.enqueue(e.Type, outcome{OutcomeEvent: e})
		},
		OnFailure: func(_ context.Context, e *domain.OutcomeEvent) {
			o := outcome{OutcomeEvent: e}
			if e.Err != nil {
				o.Error = e.Err.Error()
			}
			f.enqueue(e.Type, o)
		},
	}
}

// Topic returns the topic events of type t are published to.
func (f *Forwarder) Topic(t domain.EventType) string {
	return f.prefix + "/" + string(t)
}

// Dropped returns how many events were discarded because the queue was full.
func (f *Forwarder) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *Forwarder) enqueue(t domain.EventType, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		f.logger.Error("failed to marshal event", "type", t, "error", err)
		return
	}
	select {
	case f.queue <- message{topic: f.Topic(t), payload: payload}:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		f.logger.Warn("event queue full, dropping event", "type", t)
	}
}

// Run publishes queued events until ctx is done, then flushes what is already queued.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case msg := <-f.queue:
			f.publish(ctx, msg)
		case <-ctx.Done():
			f.flush()
			return
		}
	}
}

func (f *Forwarder) flush() {
	for {
		select {
		case msg := <-f.queue:
			f.publish(context.Background(), msg)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, msg message) {
	if err := f.pub.Publish(ctx, msg.topic, msg.payload); err != nil {
		f.logger.Warn("failed to publish event", "topic", msg.topic, "error", err)
	}
}
