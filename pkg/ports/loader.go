package ports

import (
	"context"

	"github.com/aretw0/stagehand/pkg/domain"
)

// SceneSource defines how the engine retrieves authored scene entries.
// This allows the authoring format (Loam documents, settings file, memory) to be decoupled.
type SceneSource interface {
	// ListScenes returns every entry available in the source.
	ListScenes(ctx context.Context) ([]domain.SceneEntry, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used to re-validate scene lists while authoring.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying scenes change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
