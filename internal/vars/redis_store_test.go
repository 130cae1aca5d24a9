package vars

import (
	"context"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisStore(client, log), mr
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, 42, "name", "Alice"))
	require.NoError(t, store.Set(ctx, 42, "interests", "news,tech"))

	vars, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Alice", vars["name"])
	assert.Equal(t, "news,tech", vars["interests"])
}

func TestRedisStore_GetEmptyUser(t *testing.T) {
	store, _ := setupStore(t)

	vars, err := store.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestRedisStore_GetUnwrapsEnvelopes(t *testing.T) {
	store, mr := setupStore(t)

	mr.HSet("user:vars:42", "plan", `{"value":"pro","metadata":{"source":"import"}}`)
	mr.HSet("user:vars:42", "name", `"Alice"`)

	vars, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "pro", vars["plan"])
	assert.Equal(t, "Alice", vars["name"])
}

func TestRedisStore_UsersAreIsolated(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, 1, "name", "Alice"))
	require.NoError(t, store.Set(ctx, 2, "name", "Bob"))

	vars, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", vars["name"])
}
