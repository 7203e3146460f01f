package local

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (SessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionCache(client, ""), mr
}

func TestRedisSessionCache(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, cache.Save(ctx, &StoredSession{
		AccessToken: "tok",
		UserID:      "u1",
		Email:       "a@x.io",
		ExpiresAt:   expires,
	}))

	assert.True(t, mr.Exists(DefaultSessionKey))
	ttl := mr.TTL(DefaultSessionKey)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	got, err = cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.AccessToken)
	assert.Equal(t, "a@x.io", got.Email)
	assert.True(t, expires.Equal(got.ExpiresAt))

	require.NoError(t, cache.Clear(ctx))
	got, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionCacheExpiredSave(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, &StoredSession{AccessToken: "old", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, cache.Save(ctx, &StoredSession{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Minute)}))

	assert.False(t, mr.Exists(DefaultSessionKey))
}

func TestRedisSessionCacheExpiresWithToken(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, &StoredSession{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySessionCache(t *testing.T) {
	cache := NewMemorySessionCache()
	ctx := context.Background()

	session := &StoredSession{AccessToken: "tok", Email: "a@x.io"}
	require.NoError(t, cache.Save(ctx, session))
	session.AccessToken = "mutated"

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.AccessToken)

	require.NoError(t, cache.Save(ctx, nil))
	got, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
