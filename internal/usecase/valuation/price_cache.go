package valuation

import (
	"sync"
	"time"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// PriceCache holds the latest observed price per symbol. It is shared
// read-mostly state across portfolios, guarded by a mutex, with
// last-writer-wins semantics keyed by observation timestamp: an older
// observation arriving after a newer one is discarded.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[domain.Symbol]domain.PricePoint
}

// NewPriceCache creates an empty cache. The cache is owned by the valuation
// projection: created at startup, cleared only through Clear.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[domain.Symbol]domain.PricePoint)}
}

// Put records an observation. Returns false when an observation at least as
// recent is already cached, in which case the cache is unchanged.
func (c *PriceCache) Put(p domain.PricePoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.prices[p.Symbol]; ok && p.ObservedAt.Before(cur.ObservedAt) {
		return false
	}
	c.prices[p.Symbol] = p
	return true
}

// Get returns the cached observation for a symbol.
func (c *PriceCache) Get(symbol domain.Symbol) (domain.PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// Fresh returns the cached observation only if it is younger than maxAge as
// of now. The observation itself is still returned for stale fallback.
func (c *PriceCache) Fresh(symbol domain.Symbol, maxAge time.Duration, now time.Time) (domain.PricePoint, bool) {
	p, ok := c.Get(symbol)
	if !ok {
		return domain.PricePoint{}, false
	}
	return p, now.Sub(p.ObservedAt) <= maxAge
}

// Len returns the number of cached symbols.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

// Clear empties the cache.
func (c *PriceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = make(map[domain.Symbol]domain.PricePoint)
}
