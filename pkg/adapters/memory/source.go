package memory

import (
	"context"

	"github.com/aretw0/stagehand/pkg/domain"
)

// Source implements ports.SceneSource over a fixed list of entries.
type Source struct {
	entries []domain.SceneEntry
}

// NewSource creates a source serving the given entries in order.
func NewSource(entries ...domain.SceneEntry) *Source {
	return &Source{entries: append([]domain.SceneEntry(nil), entries...)}
}

// ListScenes returns a copy of the entries.
func (s *Source) ListScenes(ctx context.Context) ([]domain.SceneEntry, error) {
	out := make([]domain.SceneEntry, len(s.entries))
	for i, e := range s.entries {
		e.Units = append([]string(nil), e.Units...)
		out[i] = e
	}
	return out, nil
}
