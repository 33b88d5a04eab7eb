package cache

import (
	"context"
	"testing"
	"time"

	"github.com/glefebvre/reelvault/internal/config"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory(time.Minute, logger.Discard())
	ctx := context.Background()

	_, ok := c.Get(ctx, "/api/content?page=1")
	assert.False(t, ok)

	c.Set(ctx, "/api/content?page=1", []byte(`{"data":[]}`), TagContent)

	got, ok := c.Get(ctx, "/api/content?page=1")
	require.True(t, ok)
	assert.Equal(t, `{"data":[]}`, string(got))

	assert.Equal(t, TypeMemory, c.Type())
	assert.Equal(t, time.Minute, c.TTL())
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestMemory_RepeatedMissesKeepCacheUsable(t *testing.T) {
	c := NewMemory(time.Minute, logger.Discard())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, ok := c.Get(ctx, "missing")
		require.False(t, ok)
	}

	c.Set(ctx, "present", []byte("x"))
	_, ok := c.Get(ctx, "present")
	assert.True(t, ok, "misses must not trip the breaker")
}

func TestMemory_InvalidateByTag(t *testing.T) {
	c := NewMemory(time.Minute, logger.Discard())
	ctx := context.Background()

	c.Set(ctx, "list", []byte("1"), TagContent)
	c.Set(ctx, "search", []byte("2"), TagContent)
	c.Set(ctx, "other", []byte("3"), "unrelated")

	require.NoError(t, c.Invalidate(ctx, TagContent))

	_, ok := c.Get(ctx, "list")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "search")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "other")
	assert.True(t, ok)

	assert.NoError(t, c.Invalidate(ctx))
}

func TestMemory_SetIfCurrentSkipsInvalidatedGeneration(t *testing.T) {
	c := NewMemory(time.Minute, logger.Discard())
	ctx := context.Background()

	gen, err := c.Generation(ctx, TagContent)
	require.NoError(t, err)

	// a mutation lands while the response is being built
	require.NoError(t, c.Invalidate(ctx, TagContent))

	assert.False(t, c.SetIfCurrent(ctx, "list", []byte("stale"), TagContent, gen))
	_, ok := c.Get(ctx, "list")
	assert.False(t, ok)

	fresh, err := c.Generation(ctx, TagContent)
	require.NoError(t, err)
	assert.Equal(t, gen+1, fresh)

	assert.True(t, c.SetIfCurrent(ctx, "list", []byte("fresh"), TagContent, fresh))
	got, ok := c.Get(ctx, "list")
	require.True(t, ok)
	assert.Equal(t, "fresh", string(got))

	other, err := c.Generation(ctx, "unrelated")
	require.NoError(t, err)
	assert.Zero(t, other)
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory(50*time.Millisecond, logger.Discard())
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))
	time.Sleep(120 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Type: "memory", TTL: time.Second}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, TypeMemory, c.Type())

	c, err = New(config.CacheConfig{Type: "redis", RedisURL: "redis://localhost:6379/0", TTL: time.Second}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, TypeRedis, c.Type())
	assert.NoError(t, c.Close())

	_, err = New(config.CacheConfig{Type: "redis"}, logger.Discard())
	assert.Equal(t, apperrors.CodeConfig, apperrors.GetErrorCode(err))

	_, err = New(config.CacheConfig{Type: "memcached"}, logger.Discard())
	assert.Equal(t, apperrors.CodeConfig, apperrors.GetErrorCode(err))
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions("redis://:pw@cache.internal:6380/2")
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts = redisOptions("localhost:6379")
	assert.Equal(t, "localhost:6379", opts.Addr)
}
