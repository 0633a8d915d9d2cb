package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	V  float64   `json:"v"`
	At time.Time `json:"at"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := point{V: 1.5, At: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	if err := mc.Set(ctx, "p", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out point
	if err := mc.Get(ctx, "p", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.V != in.V || !out.At.Equal(in.At) {
		t.Fatalf("got %+v, want %+v", out, in)
	}

	var s string
	_ = mc.Set(ctx, "s", "raw", 0)
	if err := mc.Get(ctx, "s", &s); err != nil || s != "raw" {
		t.Fatalf("string get: %q %v", s, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	_ = mc.Set(ctx, "k", 1, time.Minute)
	now = now.Add(2 * time.Minute)
	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Fatalf("expired key should not exist")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Second); return now }
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, 0)
	_ = mc.Set(ctx, "b", 2, 0)
	var v int
	_ = mc.Get(ctx, "a", &v) // a is now newer than b
	_ = mc.Set(ctx, "c", 3, 0)

	if mc.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", mc.Len())
	}
	if err := mc.Get(ctx, "b", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("b should have been evicted")
	}
	if err := mc.Get(ctx, "a", &v); err != nil || v != 1 {
		t.Fatalf("a should survive: %v", err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if ok, _ := mc.TryLock(ctx, "l", time.Minute); !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := mc.TryLock(ctx, "l", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	_ = mc.Unlock(ctx, "l")
	if ok, _ := mc.TryLock(ctx, "l", time.Minute); !ok {
		t.Fatalf("lock after unlock should succeed")
	}
}

func TestLayeredCacheFallsBackToRemote(t *testing.T) {
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, time.Minute)
	defer lc.Close()
	ctx := context.Background()

	_ = remote.Set(ctx, "k", point{V: 2}, 0)
	var out point
	if err := lc.Get(ctx, "k", &out); err != nil || out.V != 2 {
		t.Fatalf("expected remote value, got %+v %v", out, err)
	}
	_ = remote.Delete(ctx, "k")
	out = point{}
	if err := lc.Get(ctx, "k", &out); err != nil || out.V != 2 {
		t.Fatalf("expected L1 hit after remote delete, got %+v %v", out, err)
	}
	_ = lc.Delete(ctx, "k")
	if err := lc.Get(ctx, "k", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey("coincast", "state"); got != "coincast:state" {
		t.Fatalf("unexpected key %s", got)
	}
	if got := GenerateKeyWithParams("p", "a", 1); got != "p:a:1" {
		t.Fatalf("unexpected key %s", got)
	}
}
