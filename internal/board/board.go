// Package board is the controller behind one actor's task board: it loads
// the actor-scoped task list, keeps it live from the change feed, applies
// user actions optimistically and resolves documentation for the open task.
package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/notify"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/task"
	"github.com/zulandar/floorboard/internal/techdoc"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPersistence wraps a failed write. The optimistic change it undoes is
	// marked stale until the next authoritative read.
	ErrPersistence = errors.New("board: change was not saved")
	// ErrNotConfirmed is returned by destructive actions called without
	// confirmation.
	ErrNotConfirmed = errors.New("board: action requires confirmation")
	// ErrUnknownTask is returned for a task that is not on this board.
	ErrUnknownTask = errors.New("board: task not on board")
	// ErrPartialFanOut is returned when a production fan-out stopped after
	// creating some of its tasks. Nothing is rolled back.
	ErrPartialFanOut = errors.New("board: production tasks were only partly created")
)

// Backend is the storage the controller reads and writes.
type Backend interface {
	ListTasks(ctx context.Context, q store.TaskQuery) ([]task.Task, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	ListOrders(ctx context.Context) ([]production.Order, error)
	Order(ctx context.Context, id string) (*production.Order, error)
	JobCycle(ctx context.Context, id string) (*production.JobCycle, error)

	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	ExistsForStage(ctx context.Context, orderID, stageID string) (bool, error)
	UpdateTask(ctx context.Context, actorID, id string, edit store.TaskEdit) (task.Task, error)
	MoveTask(ctx context.Context, actorID, id string, to task.Status) (task.Task, error)
	ArchiveTask(ctx context.Context, actorID, id string) (task.Task, error)
	SoftDeleteTask(ctx context.Context, actorID, id string) (task.Task, error)
}

// Notifier executes assignment notifications after a fan-out.
type Notifier interface {
	ExecuteIntents(ctx context.Context, intents []production.NotificationIntent) notify.Report
}

// Opts holds parameters for creating a Controller.
type Opts struct {
	Backend  Backend
	Checker  *access.Checker
	Hub      *realtime.Hub     // optional; without it the board is not live
	Resolver *techdoc.Resolver // optional; without it Open resolves nothing
	Notifier Notifier          // optional
	// DuplicateGuard skips order stages that already have a live task.
	DuplicateGuard bool
	Logger         zerolog.Logger
}

type entry struct {
	task task.Task
	// stale marks an optimistic change whose write failed.
	stale bool
	// pending marks an optimistic change whose write is in flight.
	pending bool
}

// Controller is one actor's board. All methods are safe for concurrent use;
// feed pushes may interleave with user actions.
type Controller struct {
	backend  Backend
	checker  *access.Checker
	hub      *realtime.Hub
	notifier Notifier
	latest   *techdoc.Latest
	guard    bool
	logger   zerolog.Logger

	mu      sync.RWMutex
	loading bool
	loaded  bool
	tasks   map[string]*entry
	users   []store.User
	orders  []production.Order
	sub     *realtime.Subscription
}

// New creates a Controller. Nothing is fetched until Load.
func New(opts Opts) (*Controller, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("board: backend is required")
	}
	if opts.Checker == nil || opts.Checker.Actor() == nil {
		return nil, fmt.Errorf("board: checker with an actor is required")
	}
	c := &Controller{
		backend:  opts.Backend,
		checker:  opts.Checker,
		hub:      opts.Hub,
		notifier: opts.Notifier,
		guard:    opts.DuplicateGuard,
		logger:   opts.Logger.With().Str("actor", opts.Checker.Actor().ID).Logger(),
		tasks:    make(map[string]*entry),
	}
	if opts.Resolver != nil {
		c.latest = techdoc.NewLatest(opts.Resolver)
	}
	return c, nil
}

func (c *Controller) actor() *access.Actor { return c.checker.Actor() }

// seesAll reports whether the actor's task query is unscoped.
func (c *Controller) seesAll() bool { return c.actor().IsAdmin() }

// Load fetches users, orders, tasks and the actor's role config
// concurrently. Only the task fetch is required; the others degrade to empty
// and are logged.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	actor := c.actor()
	var (
		tasks  []task.Task
		users  []store.User
		orders []production.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = c.backend.ListTasks(gctx, store.TaskQuery{ActorID: actor.ID, AllTasks: c.seesAll()})
		if err != nil {
			return fmt.Errorf("board: load tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if users, err = c.backend.ListUsers(gctx); err != nil {
			c.logger.Warn().Err(err).Msg("user list unavailable")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if orders, err = c.backend.ListOrders(gctx); err != nil {
			c.logger.Warn().Err(err).Msg("order list unavailable")
		}
		return nil
	})
	g.Go(func() error {
		if err := c.checker.Refresh(gctx); err != nil {
			c.logger.Warn().Err(err).Str("role", actor.Role).Msg("permissions unavailable; board is read-only")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = make(map[string]*entry, len(tasks))
	for _, t := range tasks {
		c.tasks[t.ID] = &entry{task: t}
	}
	c.users = users
	c.orders = orders
	c.loaded = true
	return nil
}

// Loading reports whether the board is waiting on a load: before the first
// one completes and again after a dropped feed until the reload lands.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading || !c.loaded
}

// Users returns the user list fetched by Load.
func (c *Controller) Users() []store.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]store.User(nil), c.users...)
}

// Orders returns the order list fetched by Load.
func (c *Controller) Orders() []production.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]production.Order(nil), c.orders...)
}

// Tasks returns the current tasks, newest first.
func (c *Controller) Tasks() []task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]task.Task, 0, len(c.tasks))
	for _, e := range c.tasks {
		out = append(out, e.task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// View partitions the current tasks into board columns.
func (c *Controller) View() task.Board {
	return task.Partition(c.Tasks())
}

// Task returns one task on the board.
func (c *Controller) Task(id string) (task.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tasks[id]
	if !ok {
		return task.Task{}, false
	}
	return e.task.Clone(), true
}

// Stale reports whether id carries an optimistic change that failed to save.
func (c *Controller) Stale(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tasks[id]
	return ok && e.stale
}

// Pending reports whether id has an optimistic change still being saved.
func (c *Controller) Pending(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tasks[id]
	return ok && e.pending
}

// Subscribe starts consuming the change feed. Pushes are authoritative: a
// pushed row replaces the local one, including any optimistic change, and a
// task the actor may no longer see is dropped. Pushes delivered out of order
// never roll a row back to an older version. If the hub drops the feed for
// falling behind, the board resubscribes and reloads. It runs until ctx is
// done or Close is called.
func (c *Controller) Subscribe(ctx context.Context) error {
	if c.hub == nil {
		return fmt.Errorf("board: no change feed configured")
	}
	sub := c.hub.Subscribe(c.feedFilter())

	c.mu.Lock()
	if c.sub != nil {
		c.sub.Close()
	}
	c.sub = sub
	c.mu.Unlock()

	go c.consume(ctx, sub)
	return nil
}

func (c *Controller) feedFilter() realtime.Filter {
	return realtime.And(
		realtime.ForCollections(realtime.CollectionTasks, realtime.CollectionRoles),
		realtime.ForActor(c.actor().ID, c.seesAll()),
	)
}

func (c *Controller) consume(ctx context.Context, sub *realtime.Subscription) {
	for {
		select {
		case <-ctx.Done():
			sub.Close()
			return
		case ch, ok := <-sub.C():
			if ok {
				c.apply(ctx, ch)
				continue
			}
			if sub = c.resubscribe(ctx, sub); sub == nil {
				return
			}
		}
	}
}

// resubscribe replaces a feed the hub dropped and reloads what it may have
// missed. It returns nil when the feed was closed by Close or Subscribe, or
// when the hub has stopped.
func (c *Controller) resubscribe(ctx context.Context, dropped *realtime.Subscription) *realtime.Subscription {
	c.mu.Lock()
	if c.sub != dropped || ctx.Err() != nil || c.hub.Stopped() {
		c.mu.Unlock()
		return nil
	}
	c.loaded = false
	c.mu.Unlock()
	c.logger.Warn().Msg("change feed dropped; resubscribing and reloading")

	sub := c.hub.Subscribe(c.feedFilter())
	c.mu.Lock()
	if c.sub != dropped {
		c.mu.Unlock()
		sub.Close()
		return nil
	}
	c.sub = sub
	c.mu.Unlock()

	if err := c.checker.Reload(ctx); err != nil {
		c.logger.Warn().Err(err).Str("role", c.actor().Role).Msg("permission reload failed")
	}
	if err := c.Reload(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("board reload after resubscribe failed")
	}
	return sub
}

func (c *Controller) apply(ctx context.Context, ch realtime.Change) {
	switch ch.Collection {
	case realtime.CollectionRoles:
		if ch.ID == c.actor().Role {
			if err := c.checker.Reload(ctx); err != nil {
				c.logger.Warn().Err(err).Str("role", ch.ID).Msg("permission reload failed")
			}
		}
	case realtime.CollectionTasks:
		if ch.Task == nil {
			return
		}
		c.upsert(*ch.Task)
	}
}

// upsert replaces the local row with t, or drops it when the actor may no
// longer see it. A row older than the local one is ignored; an optimistic
// change keeps the UpdatedAt it was read with, so any saved version replaces
// it.
func (c *Controller) upsert(t task.Task) {
	actor := c.actor()
	visible := !t.IsDeleted() && (c.seesAll() || t.AssignedTo(actor.ID))

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.tasks[t.ID]
	if ok && cur.task.UpdatedAt.After(t.UpdatedAt) {
		return
	}
	if !visible {
		delete(c.tasks, t.ID)
		return
	}
	c.tasks[t.ID] = &entry{task: t.Clone()}
}

// Close stops the feed and any open detail resolution.
func (c *Controller) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
	if c.latest != nil {
		c.latest.Clear()
	}
}
