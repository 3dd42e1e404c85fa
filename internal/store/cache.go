package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/companiond/internal/bond"
)

// PopulationCache memoizes PopulationScores per tier for a TTL. Rarity is
// advisory, so slightly stale populations are fine; concurrent misses for
// the same tier share one load.
type PopulationCache struct {
	Store

	cache *expirable.LRU[bond.Tier, []float64]
	group singleflight.Group
}

// NewPopulationCache wraps inner. Non-positive size or ttl fall back to
// 1024 entries and 5 minutes.
func NewPopulationCache(inner Store, size int, ttl time.Duration) *PopulationCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PopulationCache{
		Store: inner,
		cache: expirable.NewLRU[bond.Tier, []float64](size, nil, ttl),
	}
}

func (c *PopulationCache) PopulationScores(ctx context.Context, tier bond.Tier) ([]float64, error) {
	if scores, ok := c.cache.Get(tier); ok {
		return scores, nil
	}

	v, err, _ := c.group.Do(string(tier), func() (any, error) {
		scores, err := c.Store.PopulationScores(ctx, tier)
		if err != nil {
			return nil, err
		}
		c.cache.Add(tier, scores)
		return scores, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// Invalidate drops the cached population of tier.
func (c *PopulationCache) Invalidate(tier bond.Tier) {
	c.cache.Remove(tier)
}
