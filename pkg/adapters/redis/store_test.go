package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/stagehand/pkg/adapters/redis"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StateStore = (*redis.Store)(nil)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunStateStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "slot", &domain.Snapshot{Current: "Game"}))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "slot")

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "slot")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	// The index is pruned against wall-clock time, not the miniredis clock.
	time.Sleep(1200 * time.Millisecond)

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("game:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "slot", &domain.Snapshot{Current: "Menu"}))

	assert.True(t, mr.Exists("game:slot"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"slot"))
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	require.NoError(t, store.Save(context.Background(), "slot", &domain.Snapshot{Current: "Menu"}))
	assert.True(t, mr.Exists("stagehand:snapshot:slot"))
}
