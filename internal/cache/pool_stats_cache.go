package cache

import (
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"go.uber.org/fx"
)

const defaultPoolStatsTTL = 30 * time.Second

var Module = fx.Module("cache",
	fx.Provide(NewPoolStatsCache),
)

// PoolStatsCache keeps recent prompt pool aggregates for the admin dashboard.
type PoolStatsCache interface {
	Get(variant promptdomain.Variant) (promptdomain.PoolStats, bool)
	Set(variant promptdomain.Variant, stats promptdomain.PoolStats)
	Invalidate(variant promptdomain.Variant)
}

type poolStatsCache struct {
	entries Cache[promptdomain.PoolStats]
	ttl     time.Duration
}

func NewPoolStatsCache() PoolStatsCache {
	return &poolStatsCache{
		entries: NewTTLCache[promptdomain.PoolStats](defaultPoolStatsTTL),
		ttl:     defaultPoolStatsTTL,
	}
}

func (c *poolStatsCache) Get(variant promptdomain.Variant) (promptdomain.PoolStats, bool) {
	return c.entries.Get(cacheKey("pool_stats", string(variant)))
}

func (c *poolStatsCache) Set(variant promptdomain.Variant, stats promptdomain.PoolStats) {
	c.entries.Set(cacheKey("pool_stats", string(variant)), stats, c.ttl)
}

func (c *poolStatsCache) Invalidate(variant promptdomain.Variant) {
	c.entries.Delete(cacheKey("pool_stats", string(variant)))
}
