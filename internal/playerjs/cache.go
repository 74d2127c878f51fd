package playerjs

import (
	"sync"
	"time"
)

// Cache stores analysis results keyed by script ID, so the per-script
// extraction cost is paid once per player version instead of once per
// stream. Analysis failures are cached too: they are deterministic for a
// given script body.
type Cache interface {
	Get(scriptID string) (*Analysis, bool)
	Set(scriptID string, a *Analysis)
}

type memoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]cacheItem
}

type cacheItem struct {
	analysis  *Analysis
	createdAt time.Time
}

// NewMemoryCache returns an in-process Cache. A non-positive ttl disables
// expiry; entries then live for the process duration, which matches the
// session-scoped validity of a player script.
func NewMemoryCache(ttl time.Duration) Cache {
	return &memoryCache{
		ttl:   ttl,
		items: make(map[string]cacheItem),
	}
}

func (c *memoryCache) Get(scriptID string) (*Analysis, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[scriptID]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(item.createdAt) > c.ttl {
		return nil, false
	}
	return item.analysis, true
}

func (c *memoryCache) Set(scriptID string, a *Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[scriptID] = cacheItem{analysis: a, createdAt: time.Now()}
}
