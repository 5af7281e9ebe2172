package cache

import (
	"sync"
	"time"
)

type entry struct {
	v   any
	exp time.Time
}

// TTLCache is an in-process map with per-key expiry and an injectable clock.
type TTLCache struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

type Option func(*TTLCache)

func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) { c.now = now }
}

func NewTTLCache(opts ...Option) *TTLCache {
	c := &TTLCache{m: make(map[string]entry), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key, c.now())
}

func (c *TTLCache) getLocked(key string, now time.Time) (any, bool) {
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && !now.Before(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	return e.v, true
}

// Set stores v under key. ttl <= 0 never expires.
func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry{v: v, exp: c.expiry(ttl)}
}

// SetIfAbsent stores v only when key is missing or expired, and reports whether it did.
func (c *TTLCache) SetIfAbsent(key string, v any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.getLocked(key, c.now()); ok {
		return false
	}
	c.m[key] = entry{v: v, exp: c.expiry(ttl)}
	return true
}

func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTLCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now, n := c.now(), 0
	for k, e := range c.m {
		if !e.exp.IsZero() && !now.Before(e.exp) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *TTLCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}
