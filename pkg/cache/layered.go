package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: Redis).
// With a nil Redis layer it degrades to memory only.
type LayeredCache struct {
	memCache   *MemoryCache
	redisCache *RedisCache
}

var _ Service = (*LayeredCache)(nil)

// NewLayeredCache creates a layered cache with memory and optional Redis.
func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		memCache:   NewMemoryCache(cfg.Memory...),
		redisCache: redisCache,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	// Write-through: Redis first, then memory
	if lc.redisCache != nil {
		if err := lc.redisCache.Set(ctx, key, data, expiration); err != nil {
			return err
		}
	}
	lc.memCache.setRaw(key, data, expiration)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := lc.memCache.getRaw(key); ok {
		return decode(data, dest)
	}
	if lc.redisCache == nil {
		return ErrCacheMiss
	}

	data, ttl, err := lc.redisCache.getRaw(ctx, key)
	if err != nil {
		return err
	}
	if err := decode(data, dest); err != nil {
		return err
	}
	// Backfill L1 with what is left of the L2 lifetime.
	if ttl > 0 {
		lc.memCache.setRaw(key, data, ttl)
	}
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	if lc.redisCache == nil {
		return nil
	}
	return lc.redisCache.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := lc.memCache.Exists(ctx, key); ok {
		return true, nil
	}
	if lc.redisCache == nil {
		return false, nil
	}
	return lc.redisCache.Exists(ctx, key)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	errMem := lc.memCache.Close()
	if lc.redisCache == nil {
		return errMem
	}
	return errors.Join(errMem, lc.redisCache.Close())
}
