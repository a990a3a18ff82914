package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/resilience"
)

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// Store is a TTL map cache. Expired entries stay readable through GetStale
// until Sweep removes them, which lets callers serve stale data during
// upstream outages.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	flight  resilience.SingleFlight
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key if it is still within its TTL.
func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.ttl > 0 && now.Sub(e.storedAt) >= e.ttl {
		return nil, false
	}

	return e.value, true
}

// GetStale returns the value for key even when its TTL has elapsed, as long
// as the sweeper has not evicted it yet.
func (s *Store) GetStale(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	return e.value, true
}

func (s *Store) Set(ctx context.Context, key string, value any) {
	s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *Store) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	if key == "" {
		return
	}

	s.mu.Lock()
	s.entries[key] = entry{
		value:    value,
		storedAt: s.now(),
		ttl:      ttl,
	}
	s.mu.Unlock()
}

func (s *Store) Delete(_ context.Context, key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep evicts entries older than twice their TTL and reports how many were
// removed. Entries with no TTL are never swept.
func (s *Store) Sweep(_ context.Context) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.ttl <= 0 {
			continue
		}
		if now.Sub(e.storedAt) >= 2*e.ttl {
			delete(s.entries, key)
			removed++
		}
	}

	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// GetOrLoad returns the fresh cached value for key, or runs loader once per
// key across concurrent callers and caches the result.
func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}

		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.Set(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}
