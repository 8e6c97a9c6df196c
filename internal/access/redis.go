package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "floorboard:role:"

// RedisRemote shares loaded RoleConfigs between dashboard instances.
type RedisRemote struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRemote wraps a connected client. A zero ttl keeps entries until
// they are invalidated.
func NewRedisRemote(client *redis.Client, ttl time.Duration) *RedisRemote {
	return &RedisRemote{client: client, ttl: ttl}
}

// Get reads a cached config; a missing key returns ErrRoleNotFound.
func (r *RedisRemote) Get(ctx context.Context, roleID string) (*RoleConfig, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+roleID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("access: redis get %s: %w", roleID, err)
	}
	var cfg RoleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("access: decode cached role %s: %w", roleID, err)
	}
	return &cfg, nil
}

// Set stores cfg under its role id.
func (r *RedisRemote) Set(ctx context.Context, cfg *RoleConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+cfg.ID, data, r.ttl).Err()
}

// Delete removes a cached config.
func (r *RedisRemote) Delete(ctx context.Context, roleID string) error {
	return r.client.Del(ctx, redisKeyPrefix+roleID).Err()
}
