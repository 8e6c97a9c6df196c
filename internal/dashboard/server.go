// Package dashboard serves the Floorboard JSON API: login, the actor's task
// board, production fan-out, role administration, notifications and the live
// change feed over SSE and websockets.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/auth"
	"github.com/zulandar/floorboard/internal/board"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/techdoc"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Store    *store.Store
	Cache    *access.Cache
	Issuer   *auth.Issuer
	Hub      *realtime.Hub     // optional; without it the API is not live
	Resolver *techdoc.Resolver // optional
	Notifier board.Notifier    // optional
	// DuplicateGuard makes production fan-out skip stages that already
	// have a task for the order.
	DuplicateGuard bool
	Port           int
	CORSOrigins    []string
	Logger         zerolog.Logger
	Out            io.Writer
}

// Server holds the handlers' shared dependencies.
type Server struct {
	store    *store.Store
	cache    *access.Cache
	issuer   *auth.Issuer
	hub      *realtime.Hub
	resolver *techdoc.Resolver
	notifier board.Notifier
	guard    bool
	validate *validator.Validate
	sessions *sessions
	logger   zerolog.Logger

	// baseCtx bounds background work started on behalf of requests, such
	// as board feed subscriptions.
	baseCtx context.Context
}

// NewServer checks opts and builds a Server whose background work stops when
// ctx is done.
func NewServer(ctx context.Context, opts StartOpts) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("dashboard: store is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("dashboard: role cache is required")
	}
	if opts.Issuer == nil {
		return nil, fmt.Errorf("dashboard: token issuer is required")
	}
	s := &Server{
		store:    opts.Store,
		cache:    opts.Cache,
		issuer:   opts.Issuer,
		hub:      opts.Hub,
		resolver: opts.Resolver,
		notifier: opts.Notifier,
		guard:    opts.DuplicateGuard,
		validate: validator.New(),
		logger:   opts.Logger,
		baseCtx:  ctx,
	}
	s.sessions = newSessions(s)
	return s, nil
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	srv, err := NewServer(ctx, opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := graceful.Default(graceful.WithAddr(fmt.Sprintf(":%d", opts.Port)))
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	defer router.Close()

	router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	srv.Register(router.Engine)

	go srv.sessions.sweep(ctx)
	if srv.hub != nil {
		go srv.watchRoles(ctx)
	}

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard API running at http://localhost:%d/api/v1\n", opts.Port)
	}
	if err := router.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// watchRoles drops cached role configs when a role is written, here or on
// another instance via NATS. If the hub drops the feed, every cached config
// is dropped since role writes may have been missed.
func (s *Server) watchRoles(ctx context.Context) {
	filter := realtime.ForCollections(realtime.CollectionRoles)
	sub := s.hub.Subscribe(filter)
	defer func() { sub.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-sub.C():
			if !ok {
				if ctx.Err() != nil || s.hub.Stopped() {
					return
				}
				s.logger.Warn().Msg("role feed dropped; resubscribing and clearing cached role configs")
				sub = s.hub.Subscribe(filter)
				s.cache.InvalidateAll()
				continue
			}
			s.cache.Invalidate(ctx, ch.ID)
			s.logger.Debug().Str("role", ch.ID).Msg("role config invalidated")
		}
	}
}

func (s *Server) newController(actor access.Actor) (*board.Controller, error) {
	a := actor
	return board.New(board.Opts{
		Backend:        s.store,
		Checker:        access.NewChecker(s.cache, &a),
		Hub:            s.hub,
		Resolver:       s.resolver,
		Notifier:       s.notifier,
		DuplicateGuard: s.guard,
		Logger:         s.logger,
	})
}
