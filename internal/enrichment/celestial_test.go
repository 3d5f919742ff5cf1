package enrichment

import (
	"context"
	"testing"
)

func TestCelestialCache_FetchesOnMissAndCachesHit(t *testing.T) {
	calls := 0
	cache := NewCelestialCache(func(_ context.Context, systemID int64, x, y, z float64) (Celestial, error) {
		calls++
		return Celestial{ItemID: systemID * 10, ItemName: "station"}, nil
	})

	c1, err := cache.Get(context.Background(), 1, 0, 0, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	c2, err := cache.Get(context.Background(), 1, 0, 0, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c1 != c2 {
		t.Errorf("expected identical cached results, got %+v vs %+v", c1, c2)
	}
	if calls != 1 {
		t.Errorf("expected exactly one fetch, got %d", calls)
	}
}

func TestCelestialCache_KeyedBySystemOnly(t *testing.T) {
	calls := 0
	cache := NewCelestialCache(func(_ context.Context, systemID int64, x, y, z float64) (Celestial, error) {
		calls++
		return Celestial{ItemID: systemID}, nil
	})

	if _, err := cache.Get(context.Background(), 1, 100, 200, 300); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := cache.Get(context.Background(), 1, 999, 999, 999); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the second call with different coordinates to still hit cache, got %d fetches", calls)
	}
}

func TestCelestialCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewCelestialCache(func(_ context.Context, systemID int64, x, y, z float64) (Celestial, error) {
		return Celestial{ItemID: systemID}, nil
	})
	cache.capacity = 2

	ctx := context.Background()
	if _, err := cache.Get(ctx, 1, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, 2, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	// touch system 1 so it becomes most-recently-used
	if _, err := cache.Get(ctx, 1, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	// inserting a third distinct system must evict system 2, the LRU entry
	if _, err := cache.Get(ctx, 3, 0, 0, 0); err != nil {
		t.Fatal(err)
	}

	if cache.Len() != 2 {
		t.Fatalf("expected capacity to cap the cache at 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.items[2]; ok {
		t.Error("expected system 2 to have been evicted as least recently used")
	}
	if _, ok := cache.items[1]; !ok {
		t.Error("expected system 1 to survive since it was touched most recently")
	}
}
