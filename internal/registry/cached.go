package registry

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is the lookup cache lifetime applied by Cached when none is
// given: long enough that a hot channel doesn't round-trip to Redis/Postgres
// on every playlist request, short enough that a registry edit is visible
// promptly. This caches registry metadata only, never upstream response
// bodies.
const DefaultTTL = 30 * time.Second

// Cached wraps a Registry with a short-TTL lookup cache.
type Cached struct {
	inner Registry
	cache *ttlcache.Cache[string, *Channel]
}

// NewCached wraps inner with a lookup cache whose entries live for ttl.
// ttl <= 0 selects DefaultTTL.
func NewCached(inner Registry, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := ttlcache.New[string, *Channel](
		ttlcache.WithTTL[string, *Channel](ttl),
		// A hit must not extend the entry's lifetime, or a hot channel
		// would never be re-read from the backend.
		ttlcache.WithDisableTouchOnHit[string, *Channel](),
	)
	go cache.Start()
	return &Cached{inner: inner, cache: cache}
}

// Close stops the cache's background cleanup goroutine.
func (c *Cached) Close() {
	c.cache.Stop()
}

func (c *Cached) GetByID(ctx context.Context, id string) (*Channel, error) {
	if item := c.cache.Get(id); item != nil {
		return item.Value(), nil
	}

	ch, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Cache misses (nil, nil) too: an unknown channel id hammered by a
	// misconfigured player shouldn't repeatedly hit the backend.
	c.cache.Set(id, ch, ttlcache.DefaultTTL)
	return ch, nil
}
