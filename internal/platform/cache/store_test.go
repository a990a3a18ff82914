package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_GetReturnsFreshValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(30 * time.Second)
	store.Set(ctx, "live:1", 42)

	got, ok := store.Get(ctx, "live:1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.(int) != 42 {
		t.Fatalf("unexpected value: %v", got)
	}
}

func TestStore_ExpiredEntryMissesButStaysStaleReadable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(30 * time.Second)

	base := time.Now()
	store.now = func() time.Time { return base }
	store.Set(ctx, "live:1", "snapshot")

	store.now = func() time.Time { return base.Add(45 * time.Second) }

	if _, ok := store.Get(ctx, "live:1"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
	got, ok := store.GetStale(ctx, "live:1")
	if !ok || got.(string) != "snapshot" {
		t.Fatalf("expected stale value, got=%v ok=%v", got, ok)
	}
}

func TestStore_SweepEvictsBeyondTwiceTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(30 * time.Second)

	base := time.Now()
	store.now = func() time.Time { return base }
	store.Set(ctx, "old", 1)
	store.SetWithTTL(ctx, "pinned", 2, 0)

	store.now = func() time.Time { return base.Add(61 * time.Second) }
	removed := store.Sweep(ctx)
	if removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if _, ok := store.GetStale(ctx, "old"); ok {
		t.Fatal("swept entry must not be stale-readable")
	}
	if _, ok := store.Get(ctx, "pinned"); !ok {
		t.Fatal("zero-TTL entry must survive sweeps")
	}
}

func TestStore_GetOrLoadDeduplicatesConcurrentLoads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(time.Minute)

	var mu sync.Mutex
	calls := 0
	release := make(chan struct{})

	loader := func(context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return "loaded", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := store.GetOrLoad(ctx, "key", loader)
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
				return
			}
			results[i] = value
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}
	for i, value := range results {
		if value != "loaded" {
			t.Fatalf("result %d: got %v", i, value)
		}
	}
}

func TestStore_GetOrLoadPropagatesLoaderError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(time.Minute)

	wantErr := fmt.Errorf("upstream down")
	_, err := store.GetOrLoad(ctx, "key", func(context.Context) (any, error) {
		return nil, wantErr
	})
	if err == nil {
		t.Fatal("expected loader error")
	}
	if store.Len() != 0 {
		t.Fatal("failed load must not populate the cache")
	}
}
