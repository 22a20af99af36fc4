package authz

// Role is an organization-level role. The set is closed; memberships are the
// only source of a user's role and are managed outside this package.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// Roles lists all valid roles, broadest first.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleViewer}
}

// Valid reports whether r is one of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// EntityType identifies the resource family being authorized.
type EntityType string

const (
	EntityAssets       EntityType = "assets"
	EntityEvents       EntityType = "events"
	EntityMaintenance  EntityType = "maintenance_records"
	EntityAuditRecords EntityType = "audit_records"
)

// EntityTypes lists all entity types the engine knows about.
func EntityTypes() []EntityType {
	return []EntityType{EntityAssets, EntityEvents, EntityMaintenance, EntityAuditRecords}
}

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	switch e {
	case EntityAssets, EntityEvents, EntityMaintenance, EntityAuditRecords:
		return true
	}
	return false
}

// Action is an operation on an entity. Not every action applies to every
// entity type; the role table only declares the meaningful subset.
type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionAssign   Action = "assign"
	ActionMaintain Action = "maintain"
	ActionAudit    Action = "audit"
	ActionExport   Action = "export"
	ActionImport   Action = "import"
)

// PermissionSet is the resolved, boolean-valued action grants for a specific
// (user, organization, entity type). It is derived, never persisted.
type PermissionSet map[Action]bool

// Can reports whether the set grants the given action.
func (s PermissionSet) Can(action Action) bool { return s[action] }

// ManageTier reports whether the set carries the broad management grant.
// Financial fields and unrestricted row visibility hang off this tier.
func (s PermissionSet) ManageTier() bool { return s[ActionDelete] }

// AuditTier reports whether the set carries the audit grant.
func (s PermissionSet) AuditTier() bool { return s[ActionAudit] }

// AssignTier reports whether the set carries the assignment grant.
func (s PermissionSet) AssignTier() bool { return s[ActionAssign] }

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether two sets grant exactly the same actions.
func (s PermissionSet) Equal(other PermissionSet) bool {
	for k, v := range s {
		if v && !other[k] {
			return false
		}
	}
	for k, v := range other {
		if v && !s[k] {
			return false
		}
	}
	return true
}

// Actions returns the granted actions. Order is unspecified.
func (s PermissionSet) Actions() []Action {
	out := make([]Action, 0, len(s))
	for a, granted := range s {
		if granted {
			out = append(out, a)
		}
	}
	return out
}

// DenyReason categorizes a denial. Callers branch on it for user-facing
// messaging; not_found and insufficient_permission are never conflated.
type DenyReason string

const (
	ReasonInsufficientPermission DenyReason = "insufficient_permission"
	ReasonNotFound               DenyReason = "not_found"
	ReasonModuleAccessDenied     DenyReason = "module_access_denied"
)

// Decision is the outcome of an authorization check. It is a normal return
// value, not an error.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Allow is the affirmative decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a denial with the given reason.
func Deny(reason DenyReason) Decision { return Decision{Allowed: false, Reason: reason} }

// Ownership carries the resource attributes that participate in override
// rules. Lookups producing it are always filtered by organization.
type Ownership struct {
	AssignedTo string `json:"assigned_to"`
	Status     string `json:"status"`
}

// Resource status values participating in the assignment override. A resource
// in one of these states is considered actively held by its assignee.
const (
	StatusInUse      = "in_use"
	StatusCheckedOut = "checked_out"
	StatusAvailable  = "available"
)
