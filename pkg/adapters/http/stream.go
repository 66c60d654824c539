package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/stagehand/pkg/domain"
)

type subscriber struct {
	ch     chan string
	filter map[domain.EventType]bool
}

// StreamManager fans lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty stream manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber. A nil filter receives every event type.
// The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(filter map[domain.EventType]bool) (<-chan string, func()) {
	sub := &subscriber{ch: make(chan string, 16), filter: filter}

	sm.mu.Lock()
	sm.subscribers[sub] = struct{}{}
	sm.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, sub)
			close(sub.ch)
		})
	}
}

// Len returns the number of subscribers.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast delivers msg to every subscriber accepting t. Slow subscribers lose the message.
func (sm *StreamManager) Broadcast(t domain.EventType, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for sub := range sm.subscribers {
		if sub.filter != nil && !sub.filter[t] {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "type", t)
		}
	}
}

// Hooks returns lifecycle hooks that broadcast each event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	send := func(t domain.EventType, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			sm.logger.Error("SSE: failed to marshal event", "type", t, "error", err)
			return
		}
		sm.Broadcast(t, string(data))
	}
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) { send(e.Type, e) },
		OnUnitLoad:   func(_ context.Context, e *domain.UnitEvent) { send(e.Type, e) },
		OnUnitUnload: func(_ context.Context, e *domain.UnitEvent) { send(e.Type, e) },
		OnProgress:   func(_ context.Context, e *domain.ProgressEvent) { send(e.Type, e) },
		OnCommit:     func(_ context.Context, e *domain.OutcomeEvent) { send(e.Type, e) },
		OnFailure: func(_ context.Context, e *domain.OutcomeEvent) {
			msg := map[string]any{
				"type":          e.Type,
				"transition_id": e.TransitionID,
				"identifier":    e.Identifier,
				"timestamp":     e.Timestamp,
			}
			if e.Err != nil {
				msg["error"] = e.Err.Error()
			}
			send(e.Type, msg)
		},
	}
}
