package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "thread:missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "thread:1", []byte(`{"step":"welcome"}`)))
	got, err := store.Get(ctx, "thread:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":"welcome"}`, string(got))

	require.NoError(t, store.Set(ctx, "thread:1", []byte(`{"step":"income"}`)))
	got, err = store.Get(ctx, "thread:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":"income"}`, string(got))

	require.NoError(t, store.Delete(ctx, "thread:1"))
	_, err = store.Get(ctx, "thread:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, store.Set(context.Background(), "k", value))
	value[0] = 'z'

	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), &redisv9.Options{Addr: mr.Addr()}, time.Hour)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestRedisStoreAppliesPrefixAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), &redisv9.Options{Addr: mr.Addr()}, time.Minute)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), "thread:abc", []byte("x")))
	assert.True(t, mr.Exists("mortgage-agent:thread:abc"))
	assert.Equal(t, time.Minute, mr.TTL("mortgage-agent:thread:abc"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(context.Background(), "thread:abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorePrefixTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), &redisv9.Options{Addr: mr.Addr()}, time.Minute,
		WithPrefixTTL("token:", 0),
		WithPrefixTTL("state:", 10*time.Second))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "thread:abc", []byte("x")))
	require.NoError(t, store.Set(ctx, "token:user-1", []byte("y")))
	require.NoError(t, store.Set(ctx, "state:s1", []byte("z")))

	assert.Equal(t, time.Minute, mr.TTL("mortgage-agent:thread:abc"))
	assert.Zero(t, mr.TTL("mortgage-agent:token:user-1"))
	assert.Equal(t, 10*time.Second, mr.TTL("mortgage-agent:state:s1"))

	mr.FastForward(time.Hour)
	data, err := store.Get(ctx, "token:user-1")
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), &redisv9.Options{Addr: addr, MaxRetries: -1}, time.Minute)
	assert.Error(t, err)
}
