package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/auth"
	"github.com/zulandar/floorboard/internal/config"
	"github.com/zulandar/floorboard/internal/dashboard"
	"github.com/zulandar/floorboard/internal/digest"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/techdoc"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API",
		Long: `Serves the dashboard API with its live change feed. When configured it also
relays changes between instances over NATS, shares role configs through
redis and posts the production digest on schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides dashboard.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
		return fmt.Errorf("auth.jwt_secret (or %s) is required to serve", config.EnvJWTSecret)
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	hub := realtime.NewHub(logger.With().Str("component", "hub").Logger())
	e := newEnv(cfg, gormDB, logger, hub)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenMinutes)*time.Minute)
	if err != nil {
		return err
	}

	cacheOpts := access.CacheOpts{Source: e.store, Logger: logger}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		defer client.Close()
		pingCtx, stop := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; role configs load from the database until it returns")
		}
		stop()
		cacheOpts.Remote = access.NewRedisRemote(client, time.Duration(cfg.Redis.TTLSec)*time.Second)
	}
	cache, err := access.NewCache(cacheOpts)
	if err != nil {
		return err
	}

	dispatcher, err := newDispatcher(e)
	if err != nil {
		return err
	}

	var bridge *realtime.NATSBridge
	if cfg.NATS.URL != "" {
		host, _ := os.Hostname()
		bridge, err = realtime.Connect(cfg.NATS.URL, host+"-"+uuid.NewString()[:8], hub, logger.With().Str("component", "nats").Logger())
		if err != nil {
			return err
		}
	}

	var sched *digest.Scheduler
	if cfg.Digest.Cron != "" {
		if sched, err = newDigestScheduler(e, cfg.Digest.Cron, 0); err != nil {
			return err
		}
	}

	if port <= 0 {
		port = cfg.Dashboard.Port
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}
	if sched != nil {
		g.Go(func() error {
			sched.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		// The server stopping for any reason stops the rest.
		defer cancel()
		return dashboard.Start(gctx, dashboard.StartOpts{
			Store:          e.store,
			Cache:          cache,
			Issuer:         issuer,
			Hub:            hub,
			Resolver:       techdoc.NewResolver(techdoc.ResolverOpts{Source: e.store, Logger: logger}),
			Notifier:       dispatcher,
			DuplicateGuard: cfg.Dashboard.DuplicateGuard,
			Port:           port,
			CORSOrigins:    cfg.Dashboard.CORSOrigins,
			Logger:         logger.With().Str("component", "dashboard").Logger(),
			Out:            cmd.OutOrStdout(),
		})
	})
	return g.Wait()
}
