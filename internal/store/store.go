// Package store is the storage adapter between the domain packages and the
// SQL database. It owns the model/entity mapping and publishes every write
// to the realtime hub so live subscribers see it.
package store

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/task"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a point read finds nothing.
var ErrNotFound = errors.New("store: not found")

// Opts holds parameters for creating a Store.
type Opts struct {
	DB  *gorm.DB
	Hub *realtime.Hub // optional
	// Relay, when set, also receives every published change. Processes
	// without a hub use it to forward their writes elsewhere.
	Relay  func(realtime.Change)
	Logger zerolog.Logger
	Now    func() time.Time // defaults to time.Now
}

// Store reads and writes every collection the dashboard uses.
type Store struct {
	db     *gorm.DB
	hub    *realtime.Hub
	relay  func(realtime.Change)
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Store.
func New(opts Opts) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{db: opts.DB, hub: opts.Hub, relay: opts.Relay, logger: opts.Logger, now: now}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) publish(c realtime.Change) {
	if s.hub == nil && s.relay == nil {
		return
	}
	c.At = s.now()
	if s.hub != nil {
		s.hub.Publish(c)
	}
	if s.relay != nil {
		s.relay(c)
	}
}

func (s *Store) publishTask(op realtime.Op, t task.Task, previousAssignees []string) {
	audience := slices.Clone(t.AssigneeIDs)
	for _, id := range previousAssignees {
		if !slices.Contains(audience, id) {
			audience = append(audience, id)
		}
	}
	snapshot := t.Clone()
	s.publish(realtime.Change{
		Collection: realtime.CollectionTasks,
		Op:         op,
		ID:         t.ID,
		Task:       &snapshot,
		Audience:   audience,
	})
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("store: get %s %s: %w", kind, id, err)
}
