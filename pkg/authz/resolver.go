package authz

import (
	"context"
	"errors"
	"time"

	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// DefaultCacheTTL bounds how long a resolved membership may be served without
// a fresh lookup. Stale permission after a role change is a security defect,
// so the window is deliberately short; role mutations additionally invalidate
// synchronously.
const DefaultCacheTTL = 5 * time.Minute

// MembershipResolver looks up a user's active role within an organization.
// Implementations must not cache; caching and its invalidation live in the
// Resolver so they stay centralized.
type MembershipResolver interface {
	// RoleOf returns the active role, ErrNoMembership when the user has no
	// active membership, or another error for transient failures.
	RoleOf(ctx context.Context, userID, orgID string) (Role, error)
}

// Resolver computes effective permission sets per (user, organization,
// entity type). It owns the membership cache.
type Resolver struct {
	table   Table
	members MembershipResolver
	cache   Cache
	ttl     time.Duration
	metrics *Metrics
	logger  *observability.Logger
	now     func() time.Time
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l *observability.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithClock injects the clock used for lookup timing.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver over the given role table and membership
// source. Without WithCache it uses a bounded in-memory cache.
func NewResolver(table Table, members MembershipResolver, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		table:   table,
		members: members,
		ttl:     DefaultCacheTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache(4096, r.ttl)
	}
	return r
}

// Resolve returns the effective PermissionSet for the caller. Absence of an
// active membership synthesizes the viewer role (fail safe, not fail open);
// use CanAccessModule for the hard membership gate. A transient membership
// lookup failure surfaces as ErrUnavailable and never as a permission set.
func (r *Resolver) Resolve(ctx context.Context, userID, orgID string, entity EntityType) (PermissionSet, error) {
	entry, err := r.membership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if !entry.Found {
		return r.table.PermissionsFor(RoleViewer, entity), nil
	}
	return r.table.PermissionsFor(entry.Role, entity), nil
}

// CanAccessModule is the module-level gate: it requires an active membership
// and has no viewer fallback.
func (r *Resolver) CanAccessModule(ctx context.Context, userID, orgID string) (bool, error) {
	entry, err := r.membership(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return entry.Found, nil
}

func (r *Resolver) membership(ctx context.Context, userID, orgID string) (CacheEntry, error) {
	if entry, ok := r.cache.Get(ctx, userID, orgID); ok {
		r.metrics.recordCacheHit(true)
		return entry, nil
	}
	r.metrics.recordCacheHit(false)

	start := r.now()
	role, err := r.members.RoleOf(ctx, userID, orgID)
	r.metrics.observeLookup(r.now().Sub(start).Seconds())

	switch {
	case err == nil:
		entry := CacheEntry{Role: role, Found: true}
		r.cache.Put(ctx, userID, orgID, entry, r.ttl)
		return entry, nil
	case errors.Is(err, ErrNoMembership):
		entry := CacheEntry{Found: false}
		r.cache.Put(ctx, userID, orgID, entry, r.ttl)
		return entry, nil
	default:
		r.metrics.recordUnavailable()
		if r.logger != nil {
			r.logger.WithError(err).
				WithField("user_id", userID).
				WithField("org_id", orgID).
				Error("membership lookup failed")
		}
		return CacheEntry{}, Unavailable(err)
	}
}

// Invalidate drops the cached membership for a single (user, organization)
// pair. Membership mutations call it synchronously before returning.
func (r *Resolver) Invalidate(ctx context.Context, userID, orgID string) {
	r.cache.Invalidate(ctx, userID, orgID)
	r.metrics.recordInvalidation("pair")
}

// InvalidateUser drops all cached memberships for a user.
func (r *Resolver) InvalidateUser(ctx context.Context, userID string) {
	r.cache.InvalidateUser(ctx, userID)
	r.metrics.recordInvalidation("user")
}

// Flush empties the cache.
func (r *Resolver) Flush(ctx context.Context) {
	r.cache.Flush(ctx)
	r.metrics.recordInvalidation("flush")
}

// Table exposes the role table, for components layering on the resolver.
func (r *Resolver) Table() Table { return r.table }
