package authz

// FieldAccess is the access mode for a field-level check.
type FieldAccess string

const (
	FieldRead  FieldAccess = "read"
	FieldWrite FieldAccess = "write"
)

// FieldRule declares the action a PermissionSet must grant to read or write a
// sensitive field. A zero Action falls back to the coarse requirement: read
// for reads, update for writes.
type FieldRule struct {
	ReadRequires  Action
	WriteRequires Action
}

// fieldRules lists sensitive fields per entity type. Fields not listed are
// governed purely by the coarse PermissionSet. Entities with no declared
// fields get no extra restriction.
var fieldRules = map[EntityType]map[string]FieldRule{
	EntityAssets: {
		// Financial figures require the manage tier even to read.
		"purchase_price": {ReadRequires: ActionDelete, WriteRequires: ActionDelete},
		"current_value":  {ReadRequires: ActionDelete, WriteRequires: ActionDelete},
		// Reassignment requires the assign grant; reading is coarse.
		"assigned_to": {WriteRequires: ActionAssign},
		// Moving stock is a maintenance operation.
		"storage_location": {WriteRequires: ActionMaintain},
	},
	EntityEvents: {
		"budget":      {ReadRequires: ActionDelete, WriteRequires: ActionDelete},
		"assigned_to": {WriteRequires: ActionAssign},
	},
	EntityMaintenance: {
		"labor_cost":  {ReadRequires: ActionDelete, WriteRequires: ActionDelete},
		"parts_cost":  {ReadRequires: ActionDelete, WriteRequires: ActionDelete},
		"assigned_to": {WriteRequires: ActionAssign},
	},
}

// CanAccessField reports whether the PermissionSet may read or write the
// field on the given entity type. It is queryable per field so serializers
// can redact individual fields instead of denying the whole record.
func CanAccessField(set PermissionSet, entity EntityType, field string, access FieldAccess) bool {
	rule, declared := fieldRules[entity][field]

	required := ActionRead
	if access == FieldWrite {
		required = ActionUpdate
	}
	if declared {
		switch access {
		case FieldRead:
			if rule.ReadRequires != "" {
				required = rule.ReadRequires
			}
		case FieldWrite:
			if rule.WriteRequires != "" {
				required = rule.WriteRequires
			}
		}
	}
	return set.Can(required)
}

// SensitiveFields returns the declared sensitive field names for an entity
// type. Order is unspecified.
func SensitiveFields(entity EntityType) []string {
	rules := fieldRules[entity]
	out := make([]string, 0, len(rules))
	for f := range rules {
		out = append(out, f)
	}
	return out
}

// Redact returns a copy of record with every field the PermissionSet may not
// read removed. Undeclared fields pass through untouched; the caller is
// expected to have already established coarse read access.
func Redact(set PermissionSet, entity EntityType, record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		if _, declared := fieldRules[entity][k]; declared && !CanAccessField(set, entity, k, FieldRead) {
			continue
		}
		out[k] = v
	}
	return out
}
