package authz

// RoleTable is the static mapping from (entity type, role) to granted actions.
// It is pure data: lookups perform no I/O and have no error path. Unknown
// pairs resolve to the empty set, never to an error.
type RoleTable struct {
	declared map[EntityType][]Action
	grants   map[EntityType]map[Role][]Action
}

// entityActions declares the meaningful action subset per entity type.
var entityActions = map[EntityType][]Action{
	EntityAssets: {
		ActionRead, ActionCreate, ActionUpdate, ActionDelete,
		ActionAssign, ActionMaintain, ActionExport, ActionImport,
	},
	EntityEvents: {
		ActionRead, ActionCreate, ActionUpdate, ActionDelete,
		ActionAssign, ActionExport, ActionImport,
	},
	EntityMaintenance: {
		ActionRead, ActionCreate, ActionUpdate, ActionDelete,
		ActionMaintain, ActionExport,
	},
	EntityAuditRecords: {
		ActionRead, ActionAudit, ActionExport,
	},
}

// DefaultRoleTable returns the built-in table. The hierarchy is monotonic:
// viewer's grants are a subset of every other role's grants for the same
// entity type.
func DefaultRoleTable() *RoleTable {
	grants := map[EntityType]map[Role][]Action{
		EntityAssets: {
			RoleOwner: entityActions[EntityAssets],
			RoleAdmin: entityActions[EntityAssets],
			RoleManager: {
				ActionRead, ActionCreate, ActionUpdate,
				ActionAssign, ActionMaintain, ActionExport,
			},
			RoleMember: {ActionRead, ActionMaintain},
			RoleViewer: {ActionRead},
		},
		EntityEvents: {
			RoleOwner: entityActions[EntityEvents],
			RoleAdmin: entityActions[EntityEvents],
			RoleManager: {
				ActionRead, ActionCreate, ActionUpdate,
				ActionAssign, ActionExport,
			},
			RoleMember: {ActionRead},
			RoleViewer: {ActionRead},
		},
		EntityMaintenance: {
			RoleOwner: entityActions[EntityMaintenance],
			RoleAdmin: entityActions[EntityMaintenance],
			RoleManager: {
				ActionRead, ActionCreate, ActionUpdate,
				ActionMaintain, ActionExport,
			},
			RoleMember: {ActionRead, ActionCreate, ActionMaintain},
			RoleViewer: {ActionRead},
		},
		EntityAuditRecords: {
			RoleOwner:   entityActions[EntityAuditRecords],
			RoleAdmin:   entityActions[EntityAuditRecords],
			RoleManager: {ActionRead},
			RoleMember:  {ActionRead},
			RoleViewer:  {ActionRead},
		},
	}
	return &RoleTable{declared: entityActions, grants: grants}
}

// PermissionsFor returns the PermissionSet granted to role for the entity
// type. Unknown (role, entity) pairs yield the empty set.
func (t *RoleTable) PermissionsFor(role Role, entity EntityType) PermissionSet {
	set := make(PermissionSet)
	byRole, ok := t.grants[entity]
	if !ok {
		return set
	}
	actions, ok := byRole[role]
	if !ok {
		return set
	}
	for _, a := range actions {
		set[a] = true
	}
	return set
}

// DeclaredActions returns the actions that are meaningful for the entity
// type. Actions outside this list can never be granted, including through
// overrides.
func (t *RoleTable) DeclaredActions(entity EntityType) []Action {
	return append([]Action(nil), t.declared[entity]...)
}

// declaresAction reports whether entity declares action.
func (t *RoleTable) declaresAction(entity EntityType, action Action) bool {
	for _, a := range t.declared[entity] {
		if a == action {
			return true
		}
	}
	return false
}
