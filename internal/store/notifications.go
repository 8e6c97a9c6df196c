package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/realtime"
)

// Notification is one entry of a user's feed.
type Notification struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	TaskID    string    `json:"taskId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddNotification appends to userID's feed.
func (s *Store) AddNotification(ctx context.Context, n Notification) (Notification, error) {
	if n.UserID == "" {
		return Notification{}, fmt.Errorf("store: notification user is required")
	}
	if n.Kind == "" {
		n.Kind = "info"
	}
	m := models.Notification{
		UserID:    n.UserID,
		Message:   n.Message,
		Kind:      n.Kind,
		TaskID:    n.TaskID,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return Notification{}, fmt.Errorf("store: add notification for %s: %w", n.UserID, err)
	}
	out := fromNotificationModel(m)
	s.publish(realtime.Change{
		Collection: realtime.CollectionNotifications,
		Op:         realtime.OpCreate,
		ID:         strconv.FormatUint(uint64(m.ID), 10),
		Audience:   []string{n.UserID},
	})
	return out, nil
}

// Notifications returns userID's feed, newest first.
func (s *Store) Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	db := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		db = db.Where(map[string]interface{}{"read": false})
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	var rows []models.Notification
	if err := db.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: notifications for %s: %w", userID, err)
	}
	out := make([]Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromNotificationModel(r))
	}
	return out, nil
}

// MarkRead marks one of userID's notifications read.
func (s *Store) MarkRead(ctx context.Context, userID string, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return fmt.Errorf("store: mark notification %d read: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: notification %d", ErrNotFound, id)
	}
	return nil
}
