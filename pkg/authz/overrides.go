package authz

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Table is the read side of a role table. RoleTable satisfies it directly;
// ReloadableTable satisfies it with hot-swappable contents.
type Table interface {
	PermissionsFor(role Role, entity EntityType) PermissionSet
	DeclaredActions(entity EntityType) []Action
}

// Overrides replaces individual (entity, role) rows of the built-in table.
// Operators use it to tighten or extend grants without a rebuild. An override
// row fully replaces the built-in row for that pair.
type Overrides struct {
	Entities map[EntityType]map[Role][]Action `yaml:"entities"`
}

// LoadOverrides reads an override file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	var ov Overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	return &ov, nil
}

// ApplyOverrides returns a new table with the override rows applied. The
// receiver is not modified. Overrides referencing unknown entities or roles,
// or granting actions the entity does not declare, are rejected.
func (t *RoleTable) ApplyOverrides(ov *Overrides) (*RoleTable, error) {
	grants := make(map[EntityType]map[Role][]Action, len(t.grants))
	for entity, byRole := range t.grants {
		rows := make(map[Role][]Action, len(byRole))
		for role, actions := range byRole {
			rows[role] = append([]Action(nil), actions...)
		}
		grants[entity] = rows
	}

	for entity, byRole := range ov.Entities {
		if _, ok := t.declared[entity]; !ok {
			return nil, fmt.Errorf("overrides: unknown entity type %q", entity)
		}
		for role, actions := range byRole {
			if !role.Valid() {
				return nil, fmt.Errorf("overrides: unknown role %q", role)
			}
			for _, a := range actions {
				if !t.declaresAction(entity, a) {
					return nil, fmt.Errorf("overrides: action %q is not declared for entity %q", a, entity)
				}
			}
			grants[entity][role] = append([]Action(nil), actions...)
		}
	}
	return &RoleTable{declared: t.declared, grants: grants}, nil
}

// ReloadableTable wraps a RoleTable behind an atomic pointer so a file
// watcher can swap tables without a lock on the read path.
type ReloadableTable struct {
	current atomic.Pointer[RoleTable]
}

// NewReloadableTable wraps the given table.
func NewReloadableTable(t *RoleTable) *ReloadableTable {
	rt := &ReloadableTable{}
	rt.current.Store(t)
	return rt
}

// PermissionsFor implements Table.
func (rt *ReloadableTable) PermissionsFor(role Role, entity EntityType) PermissionSet {
	return rt.current.Load().PermissionsFor(role, entity)
}

// DeclaredActions implements Table.
func (rt *ReloadableTable) DeclaredActions(entity EntityType) []Action {
	return rt.current.Load().DeclaredActions(entity)
}

// Swap replaces the active table.
func (rt *ReloadableTable) Swap(t *RoleTable) {
	rt.current.Store(t)
}

// Reload loads the override file and swaps in base+overrides. A bad file
// leaves the active table untouched.
func (rt *ReloadableTable) Reload(base *RoleTable, path string) error {
	ov, err := LoadOverrides(path)
	if err != nil {
		return err
	}
	next, err := base.ApplyOverrides(ov)
	if err != nil {
		return err
	}
	rt.Swap(next)
	return nil
}

// Watch reloads the table whenever the override file changes. It blocks until
// stop is closed. Reload failures are reported through onError and do not
// stop the watcher.
func (rt *ReloadableTable) Watch(base *RoleTable, path string, stop <-chan struct{}, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := rt.Reload(base, path); err != nil && onError != nil {
				onError(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
