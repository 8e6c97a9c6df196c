// Package access resolves view/edit permissions for dashboard actors.
package access

import (
	"errors"
	"fmt"
)

// Built-in roles. Any other role name refers to a stored RoleConfig.
const (
	RoleAdmin  = "admin"
	RoleWorker = "worker"
)

// ErrPermissionDenied is returned by defensive re-checks before a mutation.
var ErrPermissionDenied = errors.New("access: permission denied")

// Level is the kind of access being checked.
type Level int

const (
	View Level = iota
	Edit
)

func (l Level) String() string {
	if l == Edit {
		return "edit"
	}
	return "view"
}

// Actor is the authenticated user performing an action.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor bypasses all permission checks.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Permission is the stored access of one role on one module.
type Permission struct {
	View bool `json:"view" yaml:"view"`
	Edit bool `json:"edit" yaml:"edit"`
}

// RoleConfig is the permission table of a non-admin role. Edit without view
// is representable and is honoured as stored.
type RoleConfig struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Permissions map[ModuleKey]Permission `json:"permissions"`
}

// Validate checks a RoleConfig before it is stored.
func (rc *RoleConfig) Validate() error {
	if rc.ID == "" {
		return fmt.Errorf("access: role id is required")
	}
	if rc.ID == RoleAdmin {
		return fmt.Errorf("access: role %q is built in and cannot be configured", RoleAdmin)
	}
	if rc.Name == "" {
		return fmt.Errorf("access: role name is required")
	}
	for k := range rc.Permissions {
		if !k.Valid() {
			return fmt.Errorf("%w: %q in role %s", ErrUnknownModule, k, rc.ID)
		}
	}
	return nil
}

// Lookup returns the stored permission for key; absent keys resolve to no
// access.
func (rc *RoleConfig) Lookup(key ModuleKey) Permission {
	if rc == nil || rc.Permissions == nil {
		return Permission{}
	}
	return rc.Permissions[key]
}

// Allowed decides whether actor may access key at level. cfg is the loaded
// RoleConfig for actor.Role, or nil when it has not been loaded. A nil actor
// is always denied; admins are always allowed.
func Allowed(actor *Actor, cfg *RoleConfig, key ModuleKey, level Level) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if cfg == nil {
		return false
	}
	p := cfg.Lookup(key)
	if level == Edit {
		return p.Edit
	}
	return p.View
}

// CanView reports whether actor may view key under cfg.
func CanView(actor *Actor, cfg *RoleConfig, key ModuleKey) bool {
	return Allowed(actor, cfg, key, View)
}

// CanEdit reports whether actor may edit key under cfg.
func CanEdit(actor *Actor, cfg *RoleConfig, key ModuleKey) bool {
	return Allowed(actor, cfg, key, Edit)
}
