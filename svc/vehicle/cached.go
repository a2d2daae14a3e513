package vehicle

import (
	"context"
	"time"

	"github.com/wavespoole/carwash/pkg/cache"
)

// CacheConfig sizes the lookup cache. A zero Size disables caching.
type CacheConfig struct {
	Size int           `env:"VEHICLE_CACHE_SIZE" envDefault:"1000"`
	TTL  time.Duration `env:"VEHICLE_CACHE_TTL" envDefault:"24h"`
}

// CachedLooker remembers successful lookups by normalized registration.
// Failures are never cached.
type CachedLooker struct {
	next  Looker
	cache *cache.LRU[string, Vehicle]
}

// NewCachedLooker wraps next. It returns next unchanged when cfg.Size is not positive.
func NewCachedLooker(next Looker, cfg CacheConfig, opts ...cache.Option) Looker {
	if cfg.Size <= 0 {
		return next
	}
	return &CachedLooker{next: next, cache: cache.NewLRU[string, Vehicle](cfg.Size, cfg.TTL, opts...)}
}

// Lookup implements Looker.
func (c *CachedLooker) Lookup(ctx context.Context, vrm string) (Vehicle, error) {
	key := NormalizeVRM(vrm)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.next.Lookup(ctx, key)
	if err != nil {
		return Vehicle{}, err
	}
	c.cache.Put(key, v)
	return v, nil
}
