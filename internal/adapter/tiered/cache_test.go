package tiered_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/taskdeck/internal/adapter/tiered"
	"github.com/Strob0t/taskdeck/internal/port/cache/cachetest"
)

// memCache is a simple in-memory cache for testing. A non-nil err makes
// every call fail.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func TestTieredCompliance(t *testing.T) {
	cachetest.Run(t, tiered.New(newMemCache(), newMemCache(), time.Minute))
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l1.data["key1"] = []byte("val1")

	val, found, err := c.Get(context.Background(), "key1")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "val1" {
		t.Fatalf("expected L1 hit val1, got %q found=%v", val, found)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l2.data["key2"] = []byte("val2")

	val, found, err := c.Get(context.Background(), "key2")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "val2" {
		t.Fatalf("expected L2 hit val2, got %q found=%v", val, found)
	}
	if string(l1.data["key2"]) != "val2" {
		t.Fatal("expected L1 backfill after L2 hit")
	}
}

func TestTiered_SetWritesBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if string(l1.data["k"]) != "v" || string(l2.data["k"]) != "v" {
		t.Fatal("expected value in both levels")
	}
}

func TestTiered_L2FailureDegradesToL1(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	l2.err = errors.New("broker down")
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("L2 failure should not fail Set: %v", err)
	}
	val, found, err := c.Get(ctx, "k")
	if err != nil || !found || string(val) != "v" {
		t.Fatalf("expected L1 value, got %q found=%v err=%v", val, found, err)
	}
	if _, found, err := c.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("L2 failure on miss should read as a miss, got found=%v err=%v", found, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("L2 failure should not fail Delete: %v", err)
	}
}

func TestTiered_L1FailurePropagates(t *testing.T) {
	l1 := newMemCache()
	l1.err = errors.New("l1 broken")
	c := tiered.New(l1, newMemCache(), time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err == nil {
		t.Fatal("expected L1 error to propagate")
	}
}
