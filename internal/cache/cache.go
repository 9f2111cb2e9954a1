// Package cache provides the TTL-bounded active-comp price cache. A hit is
// treated as equivalent to a fresh merged-and-filtered retrieval for that
// exact title string; the key is the raw subject title, so differently-worded
// but equivalent titles do not share an entry.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/monterey-cards/repricer/internal/store"
)

// ActiveComps is a two-tier cache: an in-process expirable LRU in front of
// the persistent store. Semantics are last-writer-wins; both tiers share one
// TTL.
type ActiveComps struct {
	lru   *expirable.LRU[string, []float64]
	store store.Store
	ttl   time.Duration
}

// New creates the cache. store may be nil, leaving only the memory tier.
func New(st store.Store, ttl time.Duration, maxEntries int) *ActiveComps {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &ActiveComps{
		lru:   expirable.NewLRU[string, []float64](maxEntries, nil, ttl),
		store: st,
		ttl:   ttl,
	}
}

// Get returns the cached filtered active prices for a title. A persistent-tier
// hit is promoted into memory. Store errors degrade to a miss.
func (c *ActiveComps) Get(ctx context.Context, title string) ([]float64, bool) {
	if prices, ok := c.lru.Get(title); ok {
		return prices, true
	}
	if c.store == nil {
		return nil, false
	}
	prices, fresh, err := c.store.GetActiveComps(ctx, title)
	if err != nil {
		zap.L().Warn("comp cache read failed", zap.String("title", title), zap.Error(err))
		return nil, false
	}
	if !fresh || len(prices) == 0 {
		return nil, false
	}
	c.lru.Add(title, prices)
	return prices, true
}

// Put stores filtered active prices in both tiers. An empty list is never
// cached: a hit must stand in for a fresh retrieval, and a fresh retrieval
// with no admissible actives still produces sold evidence.
func (c *ActiveComps) Put(ctx context.Context, title string, prices []float64) {
	if len(prices) == 0 {
		return
	}
	c.lru.Add(title, prices)
	if c.store == nil {
		return
	}
	if err := c.store.PutActiveComps(ctx, title, prices, c.ttl); err != nil {
		zap.L().Warn("comp cache write failed", zap.String("title", title), zap.Error(err))
	}
}

// Purge clears the memory tier and deletes expired persistent entries,
// returning the number of rows removed.
func (c *ActiveComps) Purge(ctx context.Context) (int64, error) {
	c.lru.Purge()
	if c.store == nil {
		return 0, nil
	}
	return c.store.PurgeExpired(ctx)
}
