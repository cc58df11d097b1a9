// Package capability resolves and caches the capabilities granted to an
// actor's roles, gating which transactions the actor may start.
package capability

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/model"
)

// Recorder observes cache effectiveness.
type Recorder interface {
	RecordCapabilityCacheHit()
	RecordCapabilityCacheMiss()
}

type cacheEntry struct {
	caps    model.CapabilitySet
	expires time.Time
}

// Resolver implements model.CapabilityResolver with an in-memory cache.
type Resolver struct {
	evaluator  model.PolicyEvaluator
	ttl        time.Duration
	maxEntries int
	recorder   Recorder
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver creates a new Resolver with the given evaluator and cache
// settings. recorder may be nil.
func NewResolver(evaluator model.PolicyEvaluator, cfg config.CacheConfig, recorder Recorder) *Resolver {
	return &Resolver{
		evaluator:  evaluator,
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		recorder:   recorder,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// cacheKey is the actor plus its sorted roles, so a token carrying new roles
// never sees capabilities cached for the old ones.
func cacheKey(rctx *model.RequestContext) string {
	roles := append([]string(nil), rctx.Roles...)
	sort.Strings(roles)
	return rctx.ActorID + "|" + strings.Join(roles, ",")
}

// Resolve returns the full capability set for the given context. Results are
// cached for the configured TTL.
func (r *Resolver) Resolve(rctx *model.RequestContext) (model.CapabilitySet, error) {
	key := cacheKey(rctx)

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && r.now().Before(entry.expires) {
		r.mu.RUnlock()
		r.hit()
		return entry.caps, nil
	}
	r.mu.RUnlock()
	r.miss()

	caps, err := r.evaluator.ResolveCapabilities(rctx)
	if err != nil {
		return nil, err
	}
	if r.ttl <= 0 {
		return caps, nil
	}

	r.mu.Lock()
	if r.maxEntries > 0 && len(r.cache) >= r.maxEntries {
		r.evict()
	}
	r.cache[key] = cacheEntry{caps: caps, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()

	return caps, nil
}

// Allowed reports whether the actor holds every capability in required.
func (r *Resolver) Allowed(rctx *model.RequestContext, required ...string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	caps, err := r.Resolve(rctx)
	if err != nil {
		return false, err
	}
	return caps.HasAll(required...), nil
}

// Invalidate clears cached capabilities for the given actor.
func (r *Resolver) Invalidate(actorID string) {
	prefix := actorID + "|"
	r.mu.Lock()
	for key := range r.cache {
		if strings.HasPrefix(key, prefix) {
			delete(r.cache, key)
		}
	}
	r.mu.Unlock()
}

// evict drops expired entries, then an arbitrary one if still full. Callers
// hold the write lock.
func (r *Resolver) evict() {
	now := r.now()
	for key, entry := range r.cache {
		if !now.Before(entry.expires) {
			delete(r.cache, key)
		}
	}
	if len(r.cache) < r.maxEntries {
		return
	}
	for key := range r.cache {
		delete(r.cache, key)
		return
	}
}

func (r *Resolver) hit() {
	if r.recorder != nil {
		r.recorder.RecordCapabilityCacheHit()
	}
}

func (r *Resolver) miss() {
	if r.recorder != nil {
		r.recorder.RecordCapabilityCacheMiss()
	}
}
