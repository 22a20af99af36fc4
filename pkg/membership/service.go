package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ghxstship/atlvs-sub007/pkg/audit"
	"github.com/ghxstship/atlvs-sub007/pkg/authz"
	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// ErrInvalidInput marks caller mistakes: blank identifiers, unknown roles.
var ErrInvalidInput = errors.New("invalid input")

// ErrAlreadyMember is returned when adding a user who is already a member.
var ErrAlreadyMember = errors.New("member already exists")

// Invalidator is the slice of the authorization resolver the service needs:
// the invalidation hooks called synchronously on every membership mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, userID, orgID string)
	InvalidateUser(ctx context.Context, userID string)
}

// Service validates membership mutations, persists them, and invalidates the
// permission cache before returning, so a role change is visible to the next
// authorization check.
type Service struct {
	store       Store
	invalidator Invalidator
	logger      *observability.Logger
	audit       audit.Logger
}

var _ authz.MembershipResolver = (*Service)(nil)
var _ authz.OwnershipReader = (*Service)(nil)

// NewService creates a membership service. invalidator, logger and auditLog
// may be nil for read-only or test wiring.
func NewService(store Store, invalidator Invalidator, logger *observability.Logger, auditLog audit.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Service{store: store, invalidator: invalidator, logger: logger, audit: auditLog}
}

// RoleOf implements authz.MembershipResolver.
func (s *Service) RoleOf(ctx context.Context, userID, orgID string) (authz.Role, error) {
	return s.store.ActiveRole(ctx, userID, orgID)
}

// OwnershipFields implements authz.OwnershipReader.
func (s *Service) OwnershipFields(ctx context.Context, entity authz.EntityType, resourceID, orgID string) (authz.Ownership, error) {
	return s.store.OwnershipFields(ctx, entity, resourceID, orgID)
}

// GetMember returns a membership regardless of status.
func (s *Service) GetMember(ctx context.Context, orgID, userID string) (*Membership, error) {
	orgID, userID = strings.TrimSpace(orgID), strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization_id and user_id are required", ErrInvalidInput)
	}
	return s.store.GetMember(ctx, orgID, userID)
}

// ListMembers returns all memberships of an organization.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]*Membership, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListMembers(ctx, orgID)
}

// AddMember creates an active membership.
func (s *Service) AddMember(ctx context.Context, orgID, userID string, role authz.Role, invitedBy string) (*Membership, error) {
	orgID, userID = strings.TrimSpace(orgID), strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization_id and user_id are required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	now := time.Now().UTC()
	m := &Membership{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Status:         StatusActive,
		InvitedBy:      strings.TrimSpace(invitedBy),
		JoinedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, userID, orgID, audit.EventMemberAdded, string(role))
	return m, nil
}

// UpdateMemberRole changes a member's role. The cache entry for the pair is
// dropped before returning so the change propagates immediately.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := s.store.UpdateMemberRole(ctx, orgID, userID, role); err != nil {
		return err
	}
	s.afterMutation(ctx, userID, orgID, audit.EventRoleChanged, string(role))
	return nil
}

// DeactivateMember suspends a membership without removing it.
func (s *Service) DeactivateMember(ctx context.Context, orgID, userID string) error {
	if err := s.store.SetMemberStatus(ctx, orgID, userID, StatusInactive); err != nil {
		return err
	}
	s.afterMutation(ctx, userID, orgID, audit.EventMemberDeactivated, "")
	return nil
}

// ReactivateMember restores a suspended membership.
func (s *Service) ReactivateMember(ctx context.Context, orgID, userID string) error {
	if err := s.store.SetMemberStatus(ctx, orgID, userID, StatusActive); err != nil {
		return err
	}
	s.afterMutation(ctx, userID, orgID, audit.EventMemberAdded, "")
	return nil
}

// RemoveMember deletes a membership.
func (s *Service) RemoveMember(ctx context.Context, orgID, userID string) error {
	if err := s.store.RemoveMember(ctx, orgID, userID); err != nil {
		return err
	}
	s.afterMutation(ctx, userID, orgID, audit.EventMemberRemoved, "")
	return nil
}

func (s *Service) afterMutation(ctx context.Context, userID, orgID string, event audit.EventType, detail string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, userID, orgID)
	}
	s.audit.Record(ctx, audit.Entry{
		Event:    event,
		UserID:   userID,
		OrgID:    orgID,
		Detail:   detail,
		Occurred: time.Now().UTC(),
	})
	if s.logger != nil {
		s.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"org_id":  orgID,
			"event":   string(event),
		}).Info("membership mutation")
	}
}
