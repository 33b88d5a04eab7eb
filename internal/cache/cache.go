// Package cache stores rendered public API responses in memory or Redis.
// Entries carry tags so that catalog mutations can drop every affected response at once.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/glefebvre/reelvault/internal/breaker"
	"github.com/glefebvre/reelvault/internal/config"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"

	// TagContent marks responses derived from content or availability rows
	TagContent = "content"
)

// Cache is a tagged byte cache guarded by a circuit breaker. Backend failures degrade to misses.
type Cache struct {
	store   *cache.Cache[any]
	kind    string
	ttl     time.Duration
	breaker *breaker.Breaker
	redis   *redis.Client
	log     *logger.Logger

	// per-tag invalidation counters of the memory cache; Redis keeps them server side
	genMu       sync.Mutex
	generations map[string]uint64
}

const generationPrefix = "reelvault:generation:"

// New builds the cache described by cfg
func New(cfg config.CacheConfig, log *logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.AppLogger()
	}

	switch cfg.Type {
	case "", TypeMemory:
		return NewMemory(cfg.TTL, log), nil
	case TypeRedis:
		if cfg.RedisURL == "" {
			return nil, apperrors.ConfigError("cache.redis_url is required for the redis cache", nil)
		}
		client := redis.NewClient(redisOptions(cfg.RedisURL))
		return newCache(cache.New[any](redis_store.NewRedis(client)), TypeRedis, cfg.TTL, client, log), nil
	default:
		return nil, apperrors.ConfigError(fmt.Sprintf("unsupported cache type %q", cfg.Type), nil)
	}
}

// NewMemory builds an in-process cache
func NewMemory(ttl time.Duration, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.AppLogger()
	}
	client := gocache.New(ttl, 2*ttl)
	return newCache(cache.New[any](go_store.NewGoCache(client)), TypeMemory, ttl, nil, log)
}

func newCache(s *cache.Cache[any], kind string, ttl time.Duration, client *redis.Client, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &Cache{store: s, kind: kind, ttl: ttl, redis: client, log: log, generations: map[string]uint64{}}
	c.breaker = breaker.New(breaker.Settings{
		Name:      "cache-" + kind,
		Threshold: 5,
		Cooldown:  30 * time.Second,
		OnStateChange: func(name string, from, to breaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("cache circuit breaker changed state")
		},
	})
	return c
}

// redisOptions accepts redis:// URLs and bare host:port addresses
func redisOptions(url string) *redis.Options {
	if opts, err := redis.ParseURL(url); err == nil {
		return opts
	}
	return &redis.Options{Addr: url}
}

// Type is memory or redis
func (c *Cache) Type() string {
	return c.kind
}

// TTL is the lifetime of every entry
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the bytes stored under key. Misses, backend errors and an open breaker all report false.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	var value any
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		v, err := c.store.Get(ctx, key)
		if err != nil {
			if isMiss(err) {
				return nil
			}
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		c.logFailure("cache read failed", key, err)
		return nil, false
	}

	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// Set stores value under key with the configured TTL and tags
func (c *Cache) Set(ctx context.Context, key string, value []byte, tags ...string) {
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.store.Set(ctx, key, value, store.WithExpiration(c.ttl), store.WithTags(tags))
	})
	if err != nil {
		c.logFailure("cache write failed", key, err)
	}
}

// Generation returns the invalidation counter of tag. Read it before building a
// response and pass it to SetIfCurrent.
func (c *Cache) Generation(ctx context.Context, tag string) (uint64, error) {
	if c.redis == nil {
		c.genMu.Lock()
		defer c.genMu.Unlock()
		return c.generations[tag], nil
	}

	var gen uint64
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		v, err := c.redis.Get(ctx, generationPrefix+tag).Uint64()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		gen = v
		return err
	})
	return gen, err
}

// SetIfCurrent stores value unless tag was invalidated since gen was read. An
// invalidation racing with the write removes the entry again.
func (c *Cache) SetIfCurrent(ctx context.Context, key string, value []byte, tag string, gen uint64) bool {
	if now, err := c.Generation(ctx, tag); err != nil || now != gen {
		return false
	}
	c.Set(ctx, key, value, tag)

	if now, err := c.Generation(ctx, tag); err != nil || now != gen {
		if err := c.breaker.Do(ctx, func(ctx context.Context) error {
			return c.store.Delete(ctx, key)
		}); err != nil {
			c.logFailure("cache delete failed", key, err)
		}
		return false
	}
	return true
}

func (c *Cache) bumpGenerations(ctx context.Context, tags []string) error {
	if c.redis == nil {
		c.genMu.Lock()
		defer c.genMu.Unlock()
		for _, tag := range tags {
			c.generations[tag]++
		}
		return nil
	}

	return c.breaker.Do(ctx, func(ctx context.Context) error {
		pipe := c.redis.TxPipeline()
		for _, tag := range tags {
			pipe.Incr(ctx, generationPrefix+tag)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Invalidate drops every entry carrying one of tags. The tag generations move
// first so that responses built before the call are not stored afterwards.
func (c *Cache) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	err := c.bumpGenerations(ctx, tags)
	if err == nil {
		err = c.breaker.Do(ctx, func(ctx context.Context) error {
			return c.store.Invalidate(ctx, store.WithInvalidateTags(tags))
		})
	}
	if err != nil {
		c.logFailure("cache invalidation failed", fmt.Sprint(tags), err)
		return err
	}
	return nil
}

// Ping checks the backend. The memory cache is always reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (c *Cache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func isMiss(err error) bool {
	var notFound *store.NotFound
	return errors.As(err, &notFound) ||
		errors.Is(err, redis.Nil) ||
		strings.Contains(err.Error(), "not found")
}

func (c *Cache) logFailure(msg, key string, err error) {
	if errors.Is(err, breaker.ErrOpen) || errors.Is(err, breaker.ErrProbeInFlight) {
		c.log.WithFields(map[string]interface{}{"key": key}).Debug(msg + ": breaker open")
		return
	}
	c.log.WithFields(map[string]interface{}{
		"key":   key,
		"cache": c.kind,
	}).Error(msg, err)
}
