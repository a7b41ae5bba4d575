package exits

import (
	"context"
	"errors"
	"sync"
	"time"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// DefaultStrategyTTL bounds how stale a cached strategy may be.
const DefaultStrategyTTL = 5 * time.Minute

// StrategyCache fronts a StrategyStore with a TTL cache. Strategies are
// read-mostly; the staleness window is explicit and bounded by the TTL.
// The clock is injected for testability.
type StrategyCache struct {
	store storage.StrategyStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]strategyEntry
}

type strategyEntry struct {
	strategy  *domain.ExitStrategy
	refreshed time.Time
}

// NewStrategyCache creates a StrategyCache. A zero ttl selects
// DefaultStrategyTTL; a nil clock selects time.Now.
func NewStrategyCache(store storage.StrategyStore, ttl time.Duration, now func() time.Time) *StrategyCache {
	if ttl <= 0 {
		ttl = DefaultStrategyTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StrategyCache{
		store:   store,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]strategyEntry),
	}
}

// Compile-time interface check.
var _ StrategyProvider = (*StrategyCache)(nil)

// GetStrategy returns the cached strategy when fresh, revalidating from the
// authoritative store once the TTL elapses. Misses are not cached.
func (c *StrategyCache) GetStrategy(ctx context.Context, strategyID string) (*domain.ExitStrategy, error) {
	c.mu.RLock()
	entry, ok := c.entries[strategyID]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.refreshed) < c.ttl {
		return entry.strategy, nil
	}

	strategy, err := c.store.GetByID(ctx, strategyID)
	if err != nil {
		// Serve the stale copy if the store is briefly unavailable.
		if ok && !errors.Is(err, storage.ErrNotFound) {
			return entry.strategy, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[strategyID] = strategyEntry{strategy: strategy, refreshed: c.now()}
	c.mu.Unlock()

	return strategy, nil
}

// Invalidate drops a cached strategy, forcing a reload on next use.
func (c *StrategyCache) Invalidate(strategyID string) {
	c.mu.Lock()
	delete(c.entries, strategyID)
	c.mu.Unlock()
}
