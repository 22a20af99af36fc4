package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
)

// countingInvalidator verifies that mutations drop the cached pair before the
// call returns.
type countingInvalidator struct {
	pairs []string
	users []string
}

func (i *countingInvalidator) Invalidate(_ context.Context, userID, orgID string) {
	i.pairs = append(i.pairs, userID+"|"+orgID)
}

func (i *countingInvalidator) InvalidateUser(_ context.Context, userID string) {
	i.users = append(i.users, userID)
}

func newTestService(t *testing.T) (*Service, *countingInvalidator) {
	t.Helper()
	inv := &countingInvalidator{}
	return NewService(newTestStore(t), inv, nil, nil), inv
}

func TestServiceAddMember(t *testing.T) {
	ctx := context.Background()
	svc, inv := newTestService(t)

	m, err := svc.AddMember(ctx, "o1", "u1", authz.RoleManager, "owner-1")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, []string{"u1|o1"}, inv.pairs)

	role, err := svc.RoleOf(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleManager, role)

	_, err = svc.AddMember(ctx, "o1", "u1", authz.RoleMember, "")
	assert.Error(t, err)

	_, err = svc.AddMember(ctx, "o1", "u2", authz.Role("contractor"), "")
	assert.ErrorContains(t, err, "unknown role")

	_, err = svc.AddMember(ctx, "  ", "u2", authz.RoleMember, "")
	assert.Error(t, err)
}

func TestServiceRoleChangeInvalidatesBeforeReturn(t *testing.T) {
	ctx := context.Background()
	svc, inv := newTestService(t)

	_, err := svc.AddMember(ctx, "o1", "u1", authz.RoleViewer, "")
	require.NoError(t, err)
	inv.pairs = nil

	require.NoError(t, svc.UpdateMemberRole(ctx, "o1", "u1", authz.RoleAdmin))
	assert.Equal(t, []string{"u1|o1"}, inv.pairs)

	role, err := svc.RoleOf(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, role)

	assert.Error(t, svc.UpdateMemberRole(ctx, "o1", "u1", authz.Role("root")))
}

func TestServiceDeactivateAndReactivate(t *testing.T) {
	ctx := context.Background()
	svc, inv := newTestService(t)

	_, err := svc.AddMember(ctx, "o1", "u1", authz.RoleMember, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateMember(ctx, "o1", "u1"))
	_, err = svc.RoleOf(ctx, "u1", "o1")
	assert.ErrorIs(t, err, authz.ErrNoMembership)

	require.NoError(t, svc.ReactivateMember(ctx, "o1", "u1"))
	role, err := svc.RoleOf(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, role)

	assert.Len(t, inv.pairs, 3)
}

func TestServiceRemoveMember(t *testing.T) {
	ctx := context.Background()
	svc, inv := newTestService(t)

	_, err := svc.AddMember(ctx, "o1", "u1", authz.RoleMember, "")
	require.NoError(t, err)
	inv.pairs = nil

	require.NoError(t, svc.RemoveMember(ctx, "o1", "u1"))
	assert.Equal(t, []string{"u1|o1"}, inv.pairs)

	assert.ErrorIs(t, svc.RemoveMember(ctx, "o1", "u1"), authz.ErrNoMembership)
	// A failed mutation must not invalidate.
	assert.Len(t, inv.pairs, 1)
}

func TestServiceReadValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.GetMember(ctx, "", "u1")
	assert.Error(t, err)
	_, err = svc.ListMembers(ctx, " ")
	assert.Error(t, err)
}

func TestServiceEndToEndWithResolver(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	resolver := authz.NewResolver(authz.DefaultRoleTable(), svc)
	svcWithResolver := NewService(svc.store, resolver, nil, nil)

	_, err := svcWithResolver.AddMember(ctx, "o1", "u1", authz.RoleViewer, "")
	require.NoError(t, err)

	set, err := resolver.Resolve(ctx, "u1", "o1", authz.EntityAssets)
	require.NoError(t, err)
	assert.False(t, set.Can(authz.ActionCreate))

	// The role change is visible to the very next check.
	require.NoError(t, svcWithResolver.UpdateMemberRole(ctx, "o1", "u1", authz.RoleAdmin))
	set, err = resolver.Resolve(ctx, "u1", "o1", authz.EntityAssets)
	require.NoError(t, err)
	assert.True(t, set.Can(authz.ActionCreate))
}
