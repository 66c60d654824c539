package ports

import (
	"context"

	"github.com/aretw0/stagehand/pkg/domain"
)

// StateStore defines the interface for persisting committed states.
// This allows a host to stop and resume on the last committed scene.
type StateStore interface {
	// Save persists the snapshot under the given key.
	Save(ctx context.Context, key string, snap *domain.Snapshot) error

	// Load retrieves the snapshot stored under the given key.
	// Returns domain.ErrSnapshotNotFound if nothing was stored.
	Load(ctx context.Context, key string) (*domain.Snapshot, error)

	// Delete removes the snapshot stored under the given key.
	Delete(ctx context.Context, key string) error

	// List returns the keys of every stored snapshot.
	List(ctx context.Context) ([]string, error)
}

// EventPublisher forwards serialized lifecycle events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}
