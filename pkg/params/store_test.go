package params_test

import (
	"errors"
	"testing"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetOrCreateSeedsOnce(t *testing.T) {
	calls := 0
	store := params.NewStore(params.WithInitialData("game.Session", func(r *params.Record) error {
		calls++
		return r.Add("lives", 3, false)
	}))

	assert.False(t, store.Has("game.Session"))

	first, err := store.GetOrCreate("game.Session")
	require.NoError(t, err)
	second, err := store.GetOrCreate("game.Session")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.True(t, store.Has("game.Session"))

	lives, err := params.Get[int](first, "lives", true)
	require.NoError(t, err)
	assert.Equal(t, 3, lives)
}

func TestStore_GetOrCreateWithoutSource(t *testing.T) {
	store := params.NewStore()
	rec, err := store.GetOrCreate("menu.Args")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Len())

	_, err = store.GetOrCreate("")
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestStore_SeedFailureDoesNotCreate(t *testing.T) {
	boom := errors.New("boom")
	store := params.NewStore()
	store.RegisterInitialData("game.Session", func(*params.Record) error { return boom })

	_, err := store.GetOrCreate("game.Session")
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.Has("game.Session"))
}

func TestStore_UpdateForMergesByType(t *testing.T) {
	store := params.NewStore(params.WithInitialData("game.Session", params.InitialMap(map[string]any{"lives": 3})))

	require.NoError(t, store.UpdateFor(params.FromMap("game.Session", map[string]any{"level": 2}), true))
	require.NoError(t, store.UpdateFor(params.FromMap("menu.Args", map[string]any{"tab": "options"}), true))
	require.NoError(t, store.UpdateFor(nil, false))

	err := store.UpdateFor(params.FromMap("game.Session", map[string]any{"lives": 1}), false)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	assert.Equal(t, []string{"game.Session", "menu.Args"}, store.Types())
	assert.Equal(t, map[string]map[string]any{
		"game.Session": {"lives": 3, "level": 2},
		"menu.Args":    {"tab": "options"},
	}, store.Snapshot())
}

func TestStore_RejectedUpdateCreatesNothing(t *testing.T) {
	store := params.NewStore(params.WithInitialData("game.Session", params.InitialMap(map[string]any{"level": 1})))

	err := store.UpdateFor(params.FromMap("game.Session", map[string]any{"level": 9}), false)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.False(t, store.Has("game.Session"))
	assert.Empty(t, store.Types())

	require.NoError(t, store.UpdateFor(params.FromMap("game.Session", map[string]any{"name": "ada"}), false))
	assert.True(t, store.Has("game.Session"))
	assert.Equal(t, map[string]map[string]any{
		"game.Session": {"level": 1, "name": "ada"},
	}, store.Snapshot())
}

func TestStore_Restore(t *testing.T) {
	store := params.NewStore()
	require.NoError(t, store.Restore(map[string]map[string]any{
		"game.Session": {"level": 4},
	}, true))

	rec, err := store.GetOrCreate("game.Session")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": 4}, rec.Snapshot())
}
