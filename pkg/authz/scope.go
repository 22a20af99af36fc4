package authz

import (
	"context"

	"github.com/ghxstship/atlvs-sub007/pkg/query"
)

// ScopeCondition is one arm of an entity's "visible to me" disjunction.
// MatchUser substitutes the calling user's id as the value at scope time.
type ScopeCondition struct {
	Field     string
	Value     any
	MatchUser bool
}

// ScopeRule is the static row-level visibility configuration for one entity
// type. When the caller's PermissionSet grants any of Broad, no row filter is
// added beyond the organization filter; otherwise VisibleToMe is injected as
// a disjunctive clause.
type ScopeRule struct {
	Broad      []Action
	VisibleToMe []ScopeCondition
}

// defaultScopeRules lists the per-entity disjunctions. These are declared
// data, not derived logic: each entity names its own visibility arms.
var defaultScopeRules = map[EntityType]ScopeRule{
	EntityAssets: {
		Broad: []Action{ActionDelete, ActionAudit},
		VisibleToMe: []ScopeCondition{
			{Field: "assigned_to", MatchUser: true},
			{Field: "status", Value: StatusAvailable},
		},
	},
	EntityEvents: {
		Broad: []Action{ActionDelete, ActionAudit},
		VisibleToMe: []ScopeCondition{
			{Field: "assigned_to", MatchUser: true},
			{Field: "status", Value: "confirmed"},
		},
	},
	EntityMaintenance: {
		Broad: []Action{ActionDelete, ActionAudit},
		VisibleToMe: []ScopeCondition{
			{Field: "assigned_to", MatchUser: true},
		},
	},
	EntityAuditRecords: {
		Broad: []Action{ActionAudit},
		VisibleToMe: []ScopeCondition{
			{Field: "auditor_id", MatchUser: true},
		},
	},
}

// OrgField is the column every scoped query is filtered on, unconditionally.
const OrgField = "organization_id"

// Scoper rewrites outgoing query specifications so queries can only ever see
// the caller's organization and, for restricted roles, the caller's rows.
type Scoper struct {
	resolver *Resolver
	rules    map[EntityType]ScopeRule
}

// ScoperOption customizes a Scoper.
type ScoperOption func(*Scoper)

// WithScopeRules replaces the built-in per-entity rules.
func WithScopeRules(rules map[EntityType]ScopeRule) ScoperOption {
	return func(s *Scoper) { s.rules = rules }
}

// NewScoper creates a Scoper over the resolver.
func NewScoper(resolver *Resolver, opts ...ScoperOption) *Scoper {
	s := &Scoper{resolver: resolver, rules: defaultScopeRules}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope returns a new query spec with the organization filter always applied
// and, when the caller's PermissionSet lacks the entity's broad tier, the
// entity's "visible to me" disjunction. The input spec is never modified.
// A membership lookup failure surfaces as ErrUnavailable and yields no spec:
// an unscoped query must never escape on error.
func (s *Scoper) Scope(ctx context.Context, spec query.Spec, userID, orgID string, entity EntityType) (query.Spec, error) {
	scoped := spec.Equals(OrgField, orgID)

	set, err := s.resolver.Resolve(ctx, userID, orgID, entity)
	if err != nil {
		return query.Spec{}, err
	}

	rule, ok := s.rules[entity]
	if !ok {
		return scoped, nil
	}
	for _, broad := range rule.Broad {
		if set.Can(broad) {
			return scoped, nil
		}
	}

	conds := make([]query.Condition, 0, len(rule.VisibleToMe))
	for _, c := range rule.VisibleToMe {
		value := c.Value
		if c.MatchUser {
			value = userID
		}
		conds = append(conds, query.Eq(c.Field, value))
	}
	return scoped.Or(conds...), nil
}
