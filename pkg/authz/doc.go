// Package authz implements the platform's authorization engine: role-based
// permission resolution per organization, attribute-based overrides for
// individual resources, field-level access control, and row-level query
// scoping.
//
// The engine is layered:
//
//   - RoleTable: static (entity type, role) -> action grants
//   - Resolver: effective PermissionSet per (user, organization), with a
//     TTL cache and explicit invalidation
//   - Authorizer: per-resource decisions, including the assignment override
//   - Field rules: per-field read/write tiers layered on the coarse set
//   - Scoper: organization isolation plus per-entity row filters
//
// Decisions are values (Decision), not errors. Upstream lookup failures are
// reported as ErrUnavailable and are never converted into a silent allow or
// deny.
package authz
