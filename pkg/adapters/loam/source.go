// Package loam reads scene entries from a Loam document repository (Markdown frontmatter, JSON or YAML files).
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Source adapts a Loam repository to ports.SceneSource.
type Source struct {
	Repo *loam.TypedRepository[SceneMetadata]
}

// New creates a new Loam scene source.
func New(repo *loam.TypedRepository[SceneMetadata]) *Source {
	return &Source{Repo: repo}
}

// Open initializes a read-only Loam repository at dir and wraps it.
func Open(dir string) (*Source, error) {
	repo, err := loam.Init(dir, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("failed to open scene repository %s: %w", dir, err)
	}
	return New(loam.NewTypedRepository[SceneMetadata](repo)), nil
}

// ListScenes implements ports.SceneSource.
// Identifiers default to the document path without extension. Two documents resolving to the same
// identifier are an error.
func (s *Source) ListScenes(ctx context.Context) ([]domain.SceneEntry, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	entries := make([]domain.SceneEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := toEntry(doc.ID, doc.Data, doc.Content)
		if err != nil {
			return nil, err
		}
		if existing, ok := seen[entry.Identifier]; ok {
			return nil, fmt.Errorf("collision detected: scene '%s' is defined in both '%s' and '%s'", entry.Identifier, existing, doc.ID)
		}
		seen[entry.Identifier] = doc.ID
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetScene reads a single document.
func (s *Source) GetScene(ctx context.Context, id string) (domain.SceneEntry, error) {
	doc, err := s.Repo.Get(ctx, id)
	if err != nil {
		return domain.SceneEntry{}, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return toEntry(doc.ID, doc.Data, doc.Content)
}

// InitialData collects the defaults declared by scene documents, keyed by parameter type.
// Later documents override keys of earlier ones.
func (s *Source) InitialData(ctx context.Context) (map[string]map[string]any, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	out := make(map[string]map[string]any)
	for _, doc := range docs {
		meta := doc.Data
		if meta.ParameterType == "" || len(meta.Defaults) == 0 {
			continue
		}
		dst, ok := out[meta.ParameterType]
		if !ok {
			dst = make(map[string]any, len(meta.Defaults))
			out[meta.ParameterType] = dst
		}
		for k, v := range meta.Defaults {
			dst[k] = v
		}
	}
	return out, nil
}

// Watch implements ports.Watchable.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := s.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Coalesce bursts: one pending notification is enough.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func toEntry(docID string, meta SceneMetadata, content string) (domain.SceneEntry, error) {
	id := meta.ID
	if id == "" {
		id = docID
	}
	id = trimExtension(id)

	units, err := decodeUnits(meta.Units)
	if err != nil {
		return domain.SceneEntry{}, fmt.Errorf("scene %s: %w", id, err)
	}

	allowNull := meta.ParameterType == ""
	if meta.AllowNull != nil {
		allowNull = *meta.AllowNull
	}

	desc := meta.Description
	if desc == "" {
		desc = strings.TrimSpace(content)
	}

	return domain.SceneEntry{
		Identifier:         id,
		Units:              units,
		RetainAlways:       meta.RetainAlways,
		ParameterType:      meta.ParameterType,
		ParameterAllowNull: allowNull,
		Description:        desc,
	}, nil
}

func decodeUnits(raw []any) ([]string, error) {
	units := make([]string, 0, len(raw))
	for i, v := range raw {
		switch u := v.(type) {
		case string:
			units = append(units, u)
		case map[string]any, map[any]any:
			var spec unitSpec
			if err := mapstructure.Decode(u, &spec); err != nil {
				return nil, fmt.Errorf("failed to decode unit #%d: %w", i, err)
			}
			if spec.Name == "" {
				return nil, fmt.Errorf("unit #%d is missing a name", i)
			}
			units = append(units, spec.Name)
		default:
			return nil, fmt.Errorf("invalid unit definition type: %T", v)
		}
	}
	return units, nil
}

func trimExtension(id string) string {
	if ext := filepath.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return filepath.ToSlash(id)
}
