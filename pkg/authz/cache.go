package authz

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheEntry is a resolved membership lookup. Found is false when the user
// had no active membership; negative results are cached too so repeated
// checks for non-members do not hammer the membership store.
type CacheEntry struct {
	Role  Role `json:"role"`
	Found bool `json:"found"`
}

// Cache stores membership resolutions keyed by (user, organization). The
// engine caches the role, not per-entity permission sets: the role table is
// pure, so deriving a PermissionSet from a cached role is free and keeps one
// cache entry per membership.
//
// Implementations must be safe for concurrent use and must give
// read-your-writes semantics within the process.
type Cache interface {
	Get(ctx context.Context, userID, orgID string) (CacheEntry, bool)
	Put(ctx context.Context, userID, orgID string, entry CacheEntry, ttl time.Duration)
	Invalidate(ctx context.Context, userID, orgID string)
	InvalidateUser(ctx context.Context, userID string)
	Flush(ctx context.Context)
}

func cacheKey(userID, orgID string) string {
	return userID + "|" + orgID
}

type memoryEntry struct {
	entry     CacheEntry
	expiresAt time.Time
}

// MemoryCache is a bounded in-process Cache backed by an expirable LRU. Entry
// freshness is judged against an injectable clock so tests can advance time
// without sleeping.
type MemoryCache struct {
	lru *lru.LRU[string, memoryEntry]
	now func() time.Time
}

// MemoryCacheOption customizes a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithMemoryClock injects the clock used for expiry checks.
func WithMemoryClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemoryCache creates a cache holding at most size entries. The LRU's own
// TTL eviction is set to maxTTL as a backstop; per-entry freshness is
// enforced on Get from the stored expiry.
func NewMemoryCache(size int, maxTTL time.Duration, opts ...MemoryCacheOption) *MemoryCache {
	if size < 16 {
		size = 16
	}
	c := &MemoryCache{
		lru: lru.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a fresh entry, if any.
func (c *MemoryCache) Get(_ context.Context, userID, orgID string) (CacheEntry, bool) {
	me, ok := c.lru.Get(cacheKey(userID, orgID))
	if !ok {
		return CacheEntry{}, false
	}
	if !c.now().Before(me.expiresAt) {
		c.lru.Remove(cacheKey(userID, orgID))
		return CacheEntry{}, false
	}
	return me.entry, true
}

// Put stores an entry with the given TTL.
func (c *MemoryCache) Put(_ context.Context, userID, orgID string, entry CacheEntry, ttl time.Duration) {
	c.lru.Add(cacheKey(userID, orgID), memoryEntry{
		entry:     entry,
		expiresAt: c.now().Add(ttl),
	})
}

// Invalidate drops the (user, organization) entry.
func (c *MemoryCache) Invalidate(_ context.Context, userID, orgID string) {
	c.lru.Remove(cacheKey(userID, orgID))
}

// InvalidateUser drops every entry for the user across organizations.
func (c *MemoryCache) InvalidateUser(_ context.Context, userID string) {
	prefix := userID + "|"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// Flush empties the cache.
func (c *MemoryCache) Flush(_ context.Context) {
	c.lru.Purge()
}

// Len reports the number of live entries, for metrics and tests.
func (c *MemoryCache) Len() int { return c.lru.Len() }
