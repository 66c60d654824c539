package tests

import (
	"context"
	"testing"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// SceneSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.SceneSource.
func SceneSourceContractTest(t *testing.T, source ports.SceneSource, want []domain.SceneEntry) {
	t.Helper()

	got, err := source.ListScenes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error listing scenes: %v", err)
	}

	t.Run("ListScenes_Count", func(t *testing.T) {
		if len(got) != len(want) {
			t.Errorf("expected %d scenes, got %d", len(want), len(got))
		}
	})

	t.Run("ListScenes_Content", func(t *testing.T) {
		lookup := make(map[string]domain.SceneEntry, len(got))
		for _, e := range got {
			lookup[e.Identifier] = e
		}
		for _, w := range want {
			e, ok := lookup[w.Identifier]
			if !ok {
				t.Errorf("scene %s missing from list", w.Identifier)
				continue
			}
			if len(e.Units) != len(w.Units) {
				t.Errorf("scene %s: expected units %v, got %v", w.Identifier, w.Units, e.Units)
				continue
			}
			for i := range w.Units {
				if e.Units[i] != w.Units[i] {
					t.Errorf("scene %s: unit %d is %q, want %q", w.Identifier, i, e.Units[i], w.Units[i])
				}
			}
			if e.RetainAlways != w.RetainAlways || e.ParameterType != w.ParameterType || e.ParameterAllowNull != w.ParameterAllowNull {
				t.Errorf("scene %s: policy mismatch, got %+v want %+v", w.Identifier, e, w)
			}
		}
	})
}

// HostLoaderContractTest verifies the handle lifecycle of a ports.HostLoader.
// tick advances the host by one frame.
func HostLoaderContractTest(t *testing.T, loader ports.HostLoader, tick func()) {
	t.Helper()

	pump := func(h ports.UnitHandle, until func() bool) {
		for i := 0; i < 1000 && !until(); i++ {
			tick()
		}
		if err := h.Err(); err != nil {
			t.Fatalf("handle failed: %v", err)
		}
	}

	t.Run("Load_WaitsForActivation", func(t *testing.T) {
		h, err := loader.LoadUnit("contract-a", domain.LoadAdditive)
		if err != nil {
			t.Fatalf("unexpected error loading unit: %v", err)
		}
		pump(h, func() bool { return h.Progress() >= domain.DefaultReadyThreshold })
		if h.IsDone() {
			t.Fatal("handle finished before activation was allowed")
		}
		h.SetAllowActivation(true)
		pump(h, h.IsDone)
		if !h.IsDone() {
			t.Fatal("handle never finished after activation was allowed")
		}
		if !contains(loader.LoadedUnits(), "contract-a") {
			t.Errorf("loaded units %v missing contract-a", loader.LoadedUnits())
		}
		if err := loader.SetActiveUnit("contract-a"); err != nil {
			t.Errorf("unexpected error activating unit: %v", err)
		}
	})

	t.Run("Unload", func(t *testing.T) {
		h, err := loader.UnloadUnit("contract-a")
		if err != nil {
			t.Fatalf("unexpected error unloading unit: %v", err)
		}
		pump(h, h.IsDone)
		if contains(loader.LoadedUnits(), "contract-a") {
			t.Errorf("loaded units %v still hold contract-a", loader.LoadedUnits())
		}
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
