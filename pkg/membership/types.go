// Package membership manages organization memberships: the single source of
// a user's role within an organization, and the ownership attributes the
// authorization engine's override rules read.
//
// The package deliberately does no caching. The authorization resolver owns
// the cache so invalidation stays centralized; every mutation here calls the
// resolver's invalidation hook synchronously before returning.
package membership

import (
	"time"

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
)

// Membership status values. Only active memberships grant access.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Membership links a user to an organization with a role.
type Membership struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	Role           authz.Role `json:"role"`
	Status         string     `json:"status"`
	InvitedBy      string     `json:"invited_by,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
