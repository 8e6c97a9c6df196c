package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/task"
)

// EventsBetween returns every task event in [since, until), oldest first.
func (s *Store) EventsBetween(ctx context.Context, since, until time.Time) ([]models.TaskEvent, error) {
	var events []models.TaskEvent
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", since, until).
		Order("created_at").Order("id").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("store: events between %s and %s: %w", since.Format(time.RFC3339), until.Format(time.RFC3339), err)
	}
	return events, nil
}

// TasksByID returns the tasks with the given IDs, including soft-deleted
// ones, keyed by ID.
func (s *Store) TasksByID(ctx context.Context, ids []string) (map[string]task.Task, error) {
	out := make(map[string]task.Task, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Task
	err := s.db.WithContext(ctx).Unscoped().Preload("AssignedUsers").Where("id IN ?", ids).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: tasks by id: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = fromTaskModel(r)
	}
	return out, nil
}
