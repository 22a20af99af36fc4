package membership

import (
	"context"

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
)

// Store is the persistence boundary for memberships and the ownership
// attributes of authorized resources.
type Store interface {
	// ActiveRole returns the user's role for an active membership, or
	// authz.ErrNoMembership when none exists.
	ActiveRole(ctx context.Context, userID, orgID string) (authz.Role, error)

	// OwnershipFields fetches a resource's assignment attributes, filtered by
	// organization. A resource that does not exist in this organization is
	// authz.ErrNotFound, even if it exists elsewhere.
	OwnershipFields(ctx context.Context, entity authz.EntityType, resourceID, orgID string) (authz.Ownership, error)

	GetMember(ctx context.Context, orgID, userID string) (*Membership, error)
	ListMembers(ctx context.Context, orgID string) ([]*Membership, error)
	AddMember(ctx context.Context, m *Membership) error
	UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role) error
	SetMemberStatus(ctx context.Context, orgID, userID, status string) error
	RemoveMember(ctx context.Context, orgID, userID string) error
}
