// Package realtime fans store changes out to live subscribers: board
// controllers, SSE and websocket clients, and other dashboard instances via
// NATS.
package realtime

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/task"
)

// Collections published on the hub.
const (
	CollectionTasks         = "tasks"
	CollectionRoles         = "roles"
	CollectionNotifications = "notifications"
	CollectionOrders        = "orders"
	CollectionUsers         = "users"
)

// Op is the kind of write that produced a Change.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one write to a collection. Task carries the full row after the
// write for the tasks collection, including soft deletes.
type Change struct {
	Collection string     `json:"collection"`
	Op         Op         `json:"op"`
	ID         string     `json:"id"`
	Task       *task.Task `json:"task,omitempty"`
	// Audience lists the users allowed to see the change when it is scoped:
	// task assignees before and after the write, or a notification's owner.
	Audience []string  `json:"audience,omitempty"`
	At       time.Time `json:"at"`
	// Origin is the instance that produced the change; empty for local.
	Origin string `json:"origin,omitempty"`
}

// Filter selects the changes a subscriber receives.
type Filter func(Change) bool

// ForCollections passes changes to any of the named collections.
func ForCollections(names ...string) Filter {
	return func(c Change) bool { return slices.Contains(names, c.Collection) }
}

// ForActor passes what actorID may see. With all set (admins and task
// viewers with full access) every change passes; otherwise scoped changes
// pass only when actorID is in the audience.
func ForActor(actorID string, all bool) Filter {
	return func(c Change) bool {
		if all && c.Collection != CollectionNotifications {
			return true
		}
		switch c.Collection {
		case CollectionTasks, CollectionNotifications:
			return slices.Contains(c.Audience, actorID)
		default:
			return true
		}
	}
}

// And combines filters; a nil filter passes everything.
func And(filters ...Filter) Filter {
	return func(c Change) bool {
		for _, f := range filters {
			if f != nil && !f(c) {
				return false
			}
		}
		return true
	}
}

const subscriberBuffer = 64

// Subscription is a live feed of filtered changes.
type Subscription struct {
	hub    *Hub
	filter Filter
	ch     chan Change
	once   sync.Once
}

// C returns the change channel. It is closed when the subscription is
// closed, dropped for falling behind, or the hub stops.
func (s *Subscription) C() <-chan Change { return s.ch }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
}

// Hub routes published changes to subscribers. Run must be running for
// Subscribe and Publish to make progress.
type Hub struct {
	subs       map[*Subscription]bool
	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan Change
	done       chan struct{}
	logger     zerolog.Logger
}

// NewHub creates a stopped hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:       make(map[*Subscription]bool),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		broadcast:  make(chan Change, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run routes changes until ctx is cancelled, then closes every subscription.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for s := range h.subs {
			close(s.ch)
		}
		h.subs = nil
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.subs[s] = true
			h.logger.Debug().Int("subscribers", len(h.subs)).Msg("subscriber registered")

		case s := <-h.unregister:
			if h.subs[s] {
				delete(h.subs, s)
				close(s.ch)
			}

		case c := <-h.broadcast:
			for s := range h.subs {
				if s.filter != nil && !s.filter(c) {
					continue
				}
				select {
				case s.ch <- c:
				default:
					h.logger.Warn().Str("collection", c.Collection).Msg("subscriber too slow; dropping")
					delete(h.subs, s)
					close(s.ch)
				}
			}
		}
	}
}

// Stopped reports whether Run has returned. A subscription closed while the
// hub is running was closed by its owner or dropped for falling behind.
func (h *Hub) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Subscribe registers a subscriber. If the hub has stopped the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	s := &Subscription{hub: h, filter: filter, ch: make(chan Change, subscriberBuffer)}
	select {
	case h.register <- s:
	case <-h.done:
		close(s.ch)
		s.once.Do(func() {})
	}
	return s
}

// Publish queues c for delivery. It never blocks the writer: when the queue
// is full or the hub has stopped the change is dropped and logged.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- c:
	default:
		h.logger.Warn().Str("collection", c.Collection).Str("id", c.ID).Msg("change queue full; dropping")
	}
}
