package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/persistence/middleware"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func snapshot(current string, params map[string]map[string]any) *domain.Snapshot {
	return &domain.Snapshot{
		Current:     current,
		Parameters:  params,
		CommittedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)

	ctx := context.Background()
	original := snapshot("Game", map[string]map[string]any{"game.Session": {"secret": "my-secret-sauce"}})
	require.NoError(t, secure.Save(ctx, "host", original))

	stored, err := underlying.Load(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, middleware.EnvelopeCurrent, stored.Current)
	assert.NotContains(t, stored.Parameters, "game.Session")
	assert.True(t, stored.CommittedAt.Equal(original.CommittedAt))

	loaded, err := secure.Load(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, "Game", loaded.Current)
	assert.Equal(t, "my-secret-sauce", loaded.Parameters["game.Session"]["secret"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	mwOld, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	storeOld := mwOld(underlying)
	require.NoError(t, storeOld.Save(ctx, "host", snapshot("Menu", nil)))

	mwNew, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	storeNew := mwNew(underlying)

	loaded, err := storeNew.Load(ctx, "host")
	require.NoError(t, err, "fallback key should decrypt")
	assert.Equal(t, "Menu", loaded.Current)

	require.NoError(t, storeNew.Save(ctx, "host", snapshot("Game", nil)))
	_, err = storeOld.Load(ctx, "host")
	assert.Error(t, err, "old key alone must not decrypt a snapshot sealed with the new key")
}

func TestEncryptionMiddleware_PlainSnapshot(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "host", snapshot("Menu", nil)))

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw(underlying).Load(ctx, "host")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_NotFoundPassesThrough(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw(memory.NewStore()).Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	decoded, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = middleware.DecodeKey("not base64!")
	assert.Error(t, err)
	_, err = middleware.DecodeKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestEncryptedStore_Contract(t *testing.T) {
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	mask, err := middleware.NewMaskMiddleware([]string{"secret"})
	require.NoError(t, err)
	ports.RunStateStoreContract(t, middleware.Chain(memory.NewStore(), mask, enc))
}
