package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/stagehand/pkg/adapters/loam"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/aretw0/stagehand/pkg/settings"
)

// Scenes collects the inline and directory scene entries described by s.
func Scenes(ctx context.Context, s *settings.Settings) ([]domain.SceneEntry, error) {
	entries := append([]domain.SceneEntry(nil), s.Scenes...)
	if s.ScenesDir == "" {
		return entries, nil
	}
	src, err := loam.Open(s.ScenesDir)
	if err != nil {
		return nil, err
	}
	loaded, err := src.ListScenes(ctx)
	if err != nil {
		return nil, err
	}
	return append(entries, loaded...), nil
}

// Validate reports every authoring problem of the scenes described by s.
// Settings themselves were validated when they were loaded.
func Validate(ctx context.Context, s *settings.Settings) ([]error, error) {
	entries, err := Scenes(ctx, s)
	if err != nil {
		return nil, err
	}
	reg := registry.New(entries...)

	var problems []error
	for _, p := range reg.Validate() {
		problems = append(problems, p)
	}
	if s.InitialState != "" && !reg.Exists(s.InitialState) {
		problems = append(problems, fmt.Errorf("initial_state %q: %w", s.InitialState, domain.ErrNotFound))
	}
	for typeName := range s.ParameterInitialData {
		if !usesType(entries, typeName) {
			problems = append(problems, fmt.Errorf("parameter_initial_data: no scene accepts type %q", typeName))
		}
	}
	return problems, nil
}

func usesType(entries []domain.SceneEntry, typeName string) bool {
	for _, e := range entries {
		if e.ParameterType == typeName {
			return true
		}
	}
	return false
}
