package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghxstship/atlvs-sub007/pkg/query"
)

func newTestScoper(members *fakeMembers) *Scoper {
	return NewScoper(NewResolver(DefaultRoleTable(), members))
}

func TestScopeAlwaysFiltersByOrg(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.set("admin", "o1", RoleAdmin)
	s := newTestScoper(members)

	scoped, err := s.Scope(ctx, query.New("assets"), "admin", "o1", EntityAssets)
	require.NoError(t, err)
	assert.True(t, scoped.HasClause(query.Eq(OrgField, "o1")))
}

func TestScopeBroadGrantGetsOrgFilterOnly(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.set("admin", "o1", RoleAdmin)
	s := newTestScoper(members)

	scoped, err := s.Scope(ctx, query.New("assets"), "admin", "o1", EntityAssets)
	require.NoError(t, err)
	assert.Len(t, scoped.Clauses(), 1)
}

func TestScopeRestrictedRoleGetsDisjunction(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.set("u1", "o1", RoleMember)
	s := newTestScoper(members)

	scoped, err := s.Scope(ctx, query.New("assets"), "u1", "o1", EntityAssets)
	require.NoError(t, err)
	require.Len(t, scoped.Clauses(), 2)
	assert.True(t, scoped.HasClause(query.Eq(OrgField, "o1")))
	assert.True(t, scoped.HasClause(
		query.Eq("assigned_to", "u1"),
		query.Eq("status", StatusAvailable),
	))
}

func TestScopePerEntityDisjunctions(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.set("u1", "o1", RoleMember)
	s := newTestScoper(members)

	scoped, err := s.Scope(ctx, query.New("events"), "u1", "o1", EntityEvents)
	require.NoError(t, err)
	assert.True(t, scoped.HasClause(
		query.Eq("assigned_to", "u1"),
		query.Eq("status", "confirmed"),
	))

	scoped, err = s.Scope(ctx, query.New("maintenance_records"), "u1", "o1", EntityMaintenance)
	require.NoError(t, err)
	assert.True(t, scoped.HasClause(query.Eq("assigned_to", "u1")))

	scoped, err = s.Scope(ctx, query.New("audit_records"), "u1", "o1", EntityAuditRecords)
	require.NoError(t, err)
	assert.True(t, scoped.HasClause(query.Eq("auditor_id", "u1")))
}

func TestScopeAuditTierSeesAllAuditRecords(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.set("admin", "o1", RoleAdmin)
	s := newTestScoper(members)

	scoped, err := s.Scope(ctx, query.New("audit_records"), "admin", "o1", EntityAuditRecords)
	require.NoError(t, err)
	assert.Len(t, scoped.Clauses(), 1)
}

func TestScopeLeavesInputUnmodified(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.set("u1", "o1", RoleMember)
	s := newTestScoper(members)

	base := query.New("assets").Equals("category", "audio")
	_, err := s.Scope(ctx, base, "u1", "o1", EntityAssets)
	require.NoError(t, err)
	assert.Len(t, base.Clauses(), 1)
}

func TestScopeErrorYieldsNoSpec(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.err = errors.New("connection refused")
	s := newTestScoper(members)

	scoped, err := s.Scope(ctx, query.New("assets"), "u1", "o1", EntityAssets)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, scoped.Clauses())
	assert.Empty(t, scoped.Table())
}

func TestScopeSQLRendering(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.set("u1", "o1", RoleMember)
	s := newTestScoper(members)

	scoped, err := s.Scope(ctx, query.New("assets"), "u1", "o1", EntityAssets)
	require.NoError(t, err)

	sql, args := scoped.SQL("id", "name")
	assert.Equal(t,
		"SELECT id, name FROM assets WHERE organization_id = $1 AND (assigned_to = $2 OR status = $3)",
		sql)
	assert.Equal(t, []any{"o1", "u1", StatusAvailable}, args)
}
