package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", payload{Name: "a", Value: 1.5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetTyped[payload](ctx, mc, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "a" || got.Value != 1.5 {
		t.Fatalf("unexpected value %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	mc := NewMemoryCache(WithMemoryCleanup(0), WithMemoryClock(clock.Now))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "k", "v", time.Second)
	clock.t = clock.t.Add(999 * time.Millisecond)
	var s string
	if err := mc.Get(ctx, "k", &s); err != nil || s != "v" {
		t.Fatalf("expected hit before expiry, got %q %v", s, err)
	}
	clock.t = clock.t.Add(time.Millisecond)
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	mc := NewMemoryCache(WithMemoryCleanup(0), WithMemoryClock(clock.Now), WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, time.Hour)
	clock.t = clock.t.Add(time.Second)
	_ = mc.Set(ctx, "b", 2, time.Hour)
	clock.t = clock.t.Add(time.Second)
	var n int
	_ = mc.Get(ctx, "a", &n) // a is now more recent than b
	clock.t = clock.t.Add(time.Second)
	_ = mc.Set(ctx, "c", 3, time.Hour)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if ok, _ := mc.Exists(ctx, "a"); !ok {
		t.Fatal("expected a to survive")
	}
	if mc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", mc.Len())
	}
}

func TestLayeredCacheMemoryOnly(t *testing.T) {
	lc := NewLayeredCache(nil, WithLayeredMemory(WithMemoryCleanup(0)))
	defer lc.Close()
	ctx := context.Background()

	var s string
	if err := lc.Get(ctx, "missing", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := lc.Set(ctx, "k", payload{Name: "x"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetTyped[payload](ctx, lc, "k")
	if err != nil || got.Name != "x" {
		t.Fatalf("expected hit, got %+v %v", got, err)
	}
	_ = lc.Delete(ctx, "k")
	if ok, _ := lc.Exists(ctx, "k"); ok {
		t.Fatal("expected key deleted")
	}
}
