package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/config"
	"github.com/zulandar/floorboard/internal/db"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/store"
	"gorm.io/gorm"
)

const defaultConfigPath = "floorboard.yaml"

// cliActor is recorded as the actor of task events written from the CLI
// when --as is not given.
const cliActor = "cli"

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to Floorboard config file")
}

// connectFromConfig loads the config file and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// env is what most commands need: config, logger and a store over the
// configured database.
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	store  *store.Store
	logger zerolog.Logger
	// pending holds changes to relay on Close when there is no hub.
	pending []realtime.Change
}

func openEnv(cmd *cobra.Command, configPath string) (*env, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	return newEnv(cfg, gormDB, cfg.Log.NewLogger(cmd.ErrOrStderr()), nil), nil
}

// newEnv wraps an open database. Without a hub, writes are collected and
// relayed over NATS on Close.
func newEnv(cfg *config.Config, gormDB *gorm.DB, logger zerolog.Logger, hub *realtime.Hub) *env {
	e := &env{cfg: cfg, db: gormDB, logger: logger}
	opts := store.Opts{DB: gormDB, Hub: hub, Logger: logger}
	if hub == nil {
		opts.Relay = func(c realtime.Change) { e.pending = append(e.pending, c) }
	}
	e.store = store.New(opts)
	return e
}

// Close relays pending changes and closes the database.
func (e *env) Close() {
	e.flush()
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// flush relays the changes written by this command to running dashboards
// when NATS is configured. Failures are logged; the writes themselves
// already succeeded.
func (e *env) flush() {
	if e.cfg.NATS.URL == "" || len(e.pending) == 0 {
		return
	}
	bridge, err := realtime.Connect(e.cfg.NATS.URL, "cli-"+uuid.NewString()[:8], nil, e.logger)
	if err != nil {
		e.logger.Warn().Err(err).Msg("changes not announced; dashboards pick them up on reload")
		return
	}
	for _, c := range e.pending {
		if err := bridge.Publish(c); err != nil {
			e.logger.Warn().Err(err).Str("id", c.ID).Msg("change not announced")
		}
	}
	e.pending = nil
	if err := bridge.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("nats close")
	}
}

// forgetRole drops a role from the shared redis cache so no instance
// reloads the old permissions from it.
func (e *env) forgetRole(ctx context.Context, roleID string) {
	if e.cfg.Redis.Addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: e.cfg.Redis.Addr, DB: e.cfg.Redis.DB})
	defer client.Close()
	if err := access.NewRedisRemote(client, 0).Delete(ctx, roleID); err != nil {
		e.logger.Warn().Err(err).Str("role", roleID).Msg("redis role cache not cleared")
	}
}
