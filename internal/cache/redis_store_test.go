package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "", ttl), mr
}

func TestRedisStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, time.Hour)

	_, err := store.Get(ctx, "h1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "h1", []byte(`{"primary_category":"it_services"}`)))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"h1"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultRedisPrefix+"h1"))

	got, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"primary_category":"it_services"}`, string(got))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis", st.Backend)
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.InDelta(t, 0.5, st.HitRate, 0.001)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, time.Minute)

	require.NoError(t, store.Set(ctx, "h1", []byte("v")))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "h1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, time.Hour)

	require.NoError(t, mr.Set("other:key", "keep"))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, k, []byte(k)))
	}
	require.NoError(t, store.Delete(ctx, "a"))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, int64(2), st.SizeBytes)

	require.NoError(t, store.Clear(ctx))
	st, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Entries)
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, time.Hour)
	mr.Close()

	_, err := store.Get(ctx, "h1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	addr := mr.Addr()
	client, err := NewRedisClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
