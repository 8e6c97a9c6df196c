package notify

import (
	"context"

	"github.com/zulandar/floorboard/internal/store"
)

// InboxStore persists the per-user feed.
type InboxStore interface {
	AddNotification(ctx context.Context, n store.Notification) (store.Notification, error)
	Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error)
	MarkRead(ctx context.Context, userID string, id uint) error
}

// InboxSink writes each message to the recipient's notification feed.
type InboxSink struct {
	store InboxStore
}

// NewInboxSink creates an InboxSink.
func NewInboxSink(s InboxStore) *InboxSink {
	return &InboxSink{store: s}
}

func (s *InboxSink) Name() string { return "inbox" }

func (s *InboxSink) Deliver(ctx context.Context, msg Message) error {
	_, err := s.store.AddNotification(ctx, store.Notification{
		UserID:  msg.UserID,
		Message: msg.Text,
		Kind:    msg.Kind,
		TaskID:  msg.TaskID,
	})
	return err
}

// Inbox returns userID's feed, newest first.
func (s *InboxSink) Inbox(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	return s.store.Notifications(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one of userID's notifications read.
func (s *InboxSink) MarkRead(ctx context.Context, userID string, id uint) error {
	return s.store.MarkRead(ctx, userID, id)
}
