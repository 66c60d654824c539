package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := &domain.Snapshot{
			Current: "Game",
			Parameters: map[string]map[string]any{
				"game.Session": {"name": "ada", "level": 42},
			},
			CommittedAt: time.Now().UTC().Truncate(time.Second),
		}

		err := store.Save(ctx, key, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "Game", loaded.Current)
		assert.True(t, snap.CommittedAt.Equal(loaded.CommittedAt))
		assert.Equal(t, "ada", loaded.Parameters["game.Session"]["name"])
		// JSON backends turn ints into float64, only presence is part of the contract.
		assert.NotNil(t, loaded.Parameters["game.Session"]["level"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, key, &domain.Snapshot{Current: "Menu"})
		require.NoError(t, err)

		err = store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})

	t.Run("List", func(t *testing.T) {
		k1 := key + "-1"
		k2 := key + "-2"
		_ = store.Save(ctx, k1, &domain.Snapshot{Current: "Menu"})
		_ = store.Save(ctx, k2, &domain.Snapshot{Current: "Game"})

		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
