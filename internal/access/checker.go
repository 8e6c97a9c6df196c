package access

import (
	"context"
	"fmt"
	"sync"
)

// Checker answers permission questions for one actor against a shared Cache.
// Until the actor's RoleConfig has been loaded every non-admin check fails
// closed.
type Checker struct {
	cache *Cache

	mu    sync.RWMutex
	actor *Actor
}

// NewChecker binds actor to cache. It does not fetch; call Refresh.
func NewChecker(cache *Cache, actor *Actor) *Checker {
	return &Checker{cache: cache, actor: actor}
}

// Actor returns the bound actor.
func (c *Checker) Actor() *Actor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actor
}

// SetActor rebinds the checker. When the role changes, the new role's
// config is loaded; a failed load leaves the checker fail-closed.
func (c *Checker) SetActor(ctx context.Context, actor *Actor) {
	c.mu.Lock()
	prev := c.actor
	c.actor = actor
	c.mu.Unlock()

	if actor == nil || (prev != nil && prev.Role == actor.Role) {
		return
	}
	_ = c.Refresh(ctx)
}

// Refresh loads the actor's RoleConfig if it is not cached yet. The error is
// informational: callers may ignore it because checks stay fail-closed.
func (c *Checker) Refresh(ctx context.Context) error {
	actor := c.Actor()
	if actor == nil || actor.IsAdmin() || c.cache == nil {
		return nil
	}
	_, err := c.cache.Load(ctx, actor.Role)
	return err
}

// Reload drops the actor's cached config and loads it again.
func (c *Checker) Reload(ctx context.Context) error {
	actor := c.Actor()
	if actor == nil || actor.IsAdmin() || c.cache == nil {
		return nil
	}
	c.cache.Invalidate(ctx, actor.Role)
	return c.Refresh(ctx)
}

func (c *Checker) config() *RoleConfig {
	actor := c.Actor()
	if actor == nil || c.cache == nil {
		return nil
	}
	cfg, _ := c.cache.Get(actor.Role)
	return cfg
}

// CanView reports whether the actor may view key.
func (c *Checker) CanView(key ModuleKey) bool {
	return Allowed(c.Actor(), c.config(), key, View)
}

// CanEdit reports whether the actor may edit key.
func (c *Checker) CanEdit(key ModuleKey) bool {
	return Allowed(c.Actor(), c.config(), key, Edit)
}

// Require returns ErrPermissionDenied unless the actor has level on key.
func (c *Checker) Require(key ModuleKey, level Level) error {
	if Allowed(c.Actor(), c.config(), key, level) {
		return nil
	}
	return fmt.Errorf("%w: %s on %s", ErrPermissionDenied, level, key)
}

// Effective returns the resolved permission for every known module.
func (c *Checker) Effective() map[ModuleKey]Permission {
	actor := c.Actor()
	cfg := c.config()
	out := make(map[ModuleKey]Permission, len(allModules))
	for _, k := range allModules {
		out[k] = Permission{
			View: Allowed(actor, cfg, k, View),
			Edit: Allowed(actor, cfg, k, Edit),
		}
	}
	return out
}
