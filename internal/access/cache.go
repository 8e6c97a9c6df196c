package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrRoleNotFound is returned by a Source when no RoleConfig exists for a role.
var ErrRoleNotFound = errors.New("access: role config not found")

// Source fetches role configurations from the backing store.
type Source interface {
	RoleConfig(ctx context.Context, roleID string) (*RoleConfig, error)
}

// Remote is an optional shared second-level cache (see RedisRemote).
type Remote interface {
	Get(ctx context.Context, roleID string) (*RoleConfig, error)
	Set(ctx context.Context, cfg *RoleConfig) error
	Delete(ctx context.Context, roleID string) error
}

// CacheOpts holds parameters for creating a Cache.
type CacheOpts struct {
	Source Source
	Remote Remote // optional
	Logger zerolog.Logger
}

// Cache holds loaded RoleConfigs. It is an explicit object shared by
// reference; entries stay until Invalidate or InvalidateAll is called.
// Refresh triggers are an actor's role change (Checker.SetActor), an explicit
// reload, and role-config writes.
type Cache struct {
	src    Source
	remote Remote
	logger zerolog.Logger

	mu      sync.RWMutex
	configs map[string]*RoleConfig
	// gens counts invalidations per role and epoch counts InvalidateAll
	// calls. A fetch is stored only if neither moved while it ran.
	gens  map[string]uint64
	epoch uint64
	group singleflight.Group
}

// maxLoadAttempts bounds the refetches of a role invalidated mid-load.
const maxLoadAttempts = 3

// NewCache creates an empty Cache.
func NewCache(opts CacheOpts) (*Cache, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("access: source is required")
	}
	return &Cache{
		src:     opts.Source,
		remote:  opts.Remote,
		logger:  opts.Logger,
		configs: make(map[string]*RoleConfig),
		gens:    make(map[string]uint64),
	}, nil
}

// Get returns the loaded RoleConfig for role without fetching.
func (c *Cache) Get(role string) (*RoleConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.configs[role]
	return cfg, ok
}

// Load returns the RoleConfig for role, fetching it once if needed.
// Concurrent loads of the same role share one fetch. The admin role never
// needs a config and loads as nil without error.
func (c *Cache) Load(ctx context.Context, role string) (*RoleConfig, error) {
	if role == RoleAdmin {
		return nil, nil
	}
	if cfg, ok := c.Get(role); ok {
		return cfg, nil
	}

	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		gen := c.generation(role)
		// Keying the flight by generation keeps a load that starts after an
		// invalidation from joining the superseded fetch.
		key := role + "#" + strconv.FormatUint(gen, 10)
		v, err, _ := c.group.Do(key, func() (interface{}, error) {
			return c.fetch(ctx, role)
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("role", role).Msg("role config load failed; denying until reload")
			return nil, err
		}
		f := v.(fetched)
		cfg := f.cfg

		c.mu.Lock()
		current := c.gens[role] + c.epoch
		if current == gen {
			c.configs[role] = cfg
		}
		c.mu.Unlock()
		if current != gen {
			// Invalidated while fetching: the result may predate the write.
			c.logger.Debug().Str("role", role).Msg("role invalidated during load; refetching")
			continue
		}

		if c.remote != nil && f.fromSource {
			if err := c.remote.Set(ctx, cfg); err != nil {
				c.logger.Debug().Err(err).Str("role", role).Msg("remote role cache write failed")
			} else if c.generation(role) != gen {
				// Invalidate ran between the store and the remote write.
				_ = c.remote.Delete(ctx, role)
			}
		}
		return cfg, nil
	}
	err := fmt.Errorf("access: load role %s: invalidated %d times while loading", role, maxLoadAttempts)
	c.logger.Warn().Err(err).Str("role", role).Msg("role config load failed; denying until reload")
	return nil, err
}

func (c *Cache) generation(role string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[role] + c.epoch
}

// fetched is one fetch result; fromSource results are copied to the remote
// once they are known to be current.
type fetched struct {
	cfg        *RoleConfig
	fromSource bool
}

func (c *Cache) fetch(ctx context.Context, role string) (fetched, error) {
	if c.remote != nil {
		cfg, err := c.remote.Get(ctx, role)
		if err == nil && cfg != nil {
			return fetched{cfg: cfg}, nil
		}
		if err != nil && !errors.Is(err, ErrRoleNotFound) {
			c.logger.Debug().Err(err).Str("role", role).Msg("remote role cache miss")
		}
	}

	cfg, err := c.src.RoleConfig(ctx, role)
	if err != nil {
		return fetched{}, fmt.Errorf("access: load role %s: %w", role, err)
	}
	if cfg == nil {
		return fetched{}, fmt.Errorf("access: load role %s: %w", role, ErrRoleNotFound)
	}
	return fetched{cfg: cfg, fromSource: true}, nil
}

// Invalidate drops the cached config for role locally and remotely.
func (c *Cache) Invalidate(ctx context.Context, role string) {
	c.mu.Lock()
	delete(c.configs, role)
	c.gens[role]++
	c.mu.Unlock()

	if c.remote != nil {
		if err := c.remote.Delete(ctx, role); err != nil {
			c.logger.Debug().Err(err).Str("role", role).Msg("remote role cache delete failed")
		}
	}
}

// InvalidateAll drops every locally cached config.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.configs = make(map[string]*RoleConfig)
	c.epoch++
	c.mu.Unlock()
}
