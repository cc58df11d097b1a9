package registry

import (
	"context"
	"sync"
	"time"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/model"
)

// CacheRecorder observes cache lookups.
type CacheRecorder interface {
	RecordRegistryCache(operation string, hit bool)
}

// Cached decorates a MarineRegistry with a TTL cache for unit lists and
// categories. Only successful responses are stored, so a transient failure is
// retried on the next call. Ownership, mortgage and compliance answers feed
// eligibility verdicts and always go to the backend.
type Cached struct {
	model.MarineRegistry

	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	recorder   CacheRecorder

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// NewCached wraps next with a cache configured by cfg.
func NewCached(next model.MarineRegistry, cfg config.CacheConfig, recorder CacheRecorder) *Cached {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cached{
		MarineRegistry: next,
		ttl:            ttl,
		maxEntries:     maxEntries,
		now:            time.Now,
		recorder:       recorder,
		cache:          make(map[string]cacheEntry),
	}
}

// FetchUnitsForUser returns the cached unit list of actorID if fresh.
func (c *Cached) FetchUnitsForUser(ctx context.Context, actorID string) ([]model.MarineUnit, error) {
	key := "units:" + actorID
	if v, ok := c.get(key, "fetch_units_for_user"); ok {
		return v.([]model.MarineUnit), nil
	}
	units, err := c.MarineRegistry.FetchUnitsForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	c.put(key, units)
	return units, nil
}

// FetchCategories returns the cached categories if fresh.
func (c *Cached) FetchCategories(ctx context.Context) ([]model.Category, error) {
	const key = "categories"
	if v, ok := c.get(key, "fetch_categories"); ok {
		return v.([]model.Category), nil
	}
	cats, err := c.MarineRegistry.FetchCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.put(key, cats)
	return cats, nil
}

// Invalidate drops the cached unit list of actorID, for example after a
// transaction changed what they own.
func (c *Cached) Invalidate(actorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, "units:"+actorID)
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cached) get(key, operation string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	hit := ok && c.now().Before(entry.expiresAt)
	if c.recorder != nil {
		c.recorder.RecordRegistryCache(operation, hit)
	}
	if !hit {
		return nil, false
	}
	return entry.value, true
}

func (c *Cached) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxEntries {
		c.evictExpired()
	}
	if len(c.cache) >= c.maxEntries {
		// Still full: drop an arbitrary entry.
		for k := range c.cache {
			delete(c.cache, k)
			break
		}
	}
	c.cache[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// evictExpired removes expired entries. Must be called with mu held.
func (c *Cached) evictExpired() {
	now := c.now()
	for k, v := range c.cache {
		if !now.Before(v.expiresAt) {
			delete(c.cache, k)
		}
	}
}
