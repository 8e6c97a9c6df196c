package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/task"
	"gorm.io/gorm"
)

// Task event actions.
const (
	ActionCreate  = "create"
	ActionMove    = "move"
	ActionEdit    = "edit"
	ActionArchive = "archive"
	ActionRestore = "restore"
	ActionDelete  = "delete"
	ActionReport  = "report"
	ActionApprove = "approve"
)

// TaskQuery selects tasks for a board. The actor scope is applied in SQL:
// unless AllTasks is set only tasks assigned to ActorID are returned.
type TaskQuery struct {
	ActorID  string
	AllTasks bool
	Statuses []task.Status
	OrderID  string
	Limit    int
}

func (s *Store) taskQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Task{}).Preload("AssignedUsers")
}

// ListTasks returns live (not soft-deleted) tasks matching q, newest first.
func (s *Store) ListTasks(ctx context.Context, q TaskQuery) ([]task.Task, error) {
	if !q.AllTasks && q.ActorID == "" {
		return nil, fmt.Errorf("store: list tasks: actor is required unless listing all tasks")
	}
	db := s.taskQuery(ctx)
	if !q.AllTasks {
		db = db.Where("id IN (?)", s.db.Model(&models.TaskAssignment{}).Select("task_id").Where("user_id = ?", q.ActorID))
	}
	if len(q.Statuses) > 0 {
		db = db.Where("status IN ?", q.Statuses)
	}
	if q.OrderID != "" {
		db = db.Where("order_id = ?", q.OrderID)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []models.Task
	if err := db.Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	out := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromTaskModel(r))
	}
	return out, nil
}

// GetTask returns a live task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	m, err := getTaskModel(s.db.WithContext(ctx), id, false)
	if err != nil {
		return task.Task{}, err
	}
	return fromTaskModel(m), nil
}

func getTaskModel(db *gorm.DB, id string, unscoped bool) (models.Task, error) {
	if unscoped {
		db = db.Unscoped()
	}
	var m models.Task
	if err := db.Preload("AssignedUsers").Where("id = ?", id).First(&m).Error; err != nil {
		return models.Task{}, notFound("task", id, err)
	}
	return m, nil
}

// Trash lists soft-deleted tasks, most recently deleted first.
func (s *Store) Trash(ctx context.Context) ([]task.Task, error) {
	var rows []models.Task
	err := s.db.WithContext(ctx).Unscoped().Preload("AssignedUsers").
		Where("deleted_at IS NOT NULL").
		Order("deleted_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: list trash: %w", err)
	}
	out := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromTaskModel(r))
	}
	return out, nil
}

// CreateTask validates t, assigns an ID when missing and stores it with its
// assignees. It satisfies production.TaskCreator.
func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	var created task.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.insertTask(tx, t)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	s.publishTask(realtime.OpCreate, created, nil)
	return created, nil
}

// CreateTasks stores several tasks in one transaction: either all are
// created or none are.
func (s *Store) CreateTasks(ctx context.Context, ts []task.Task) ([]task.Task, error) {
	out := make([]task.Task, 0, len(ts))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range ts {
			created, err := s.insertTask(tx, t)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, t := range out {
		s.publishTask(realtime.OpCreate, t, nil)
	}
	return out, nil
}

func (s *Store) insertTask(tx *gorm.DB, t task.Task) (task.Task, error) {
	if t.Type == "" {
		t.Type = task.TypeSimple
	}
	if t.Status == "" {
		t.Status = task.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = task.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	if t.ID == "" {
		id, err := generateUniqueTaskID(tx)
		if err != nil {
			return task.Task{}, err
		}
		t.ID = id
	}
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.DeletedAt = nil

	m := toTaskModel(t)
	assignees := m.AssignedUsers
	m.AssignedUsers = nil
	if err := tx.Create(&m).Error; err != nil {
		return task.Task{}, fmt.Errorf("store: create task: %w", err)
	}
	if len(assignees) > 0 {
		if err := tx.Create(&assignees).Error; err != nil {
			return task.Task{}, fmt.Errorf("store: assign task %s: %w", t.ID, err)
		}
	}
	if err := logEvent(tx, models.TaskEvent{TaskID: t.ID, ActorID: t.CreatedBy, Action: ActionCreate, ToStatus: string(t.Status), CreatedAt: now}); err != nil {
		return task.Task{}, err
	}
	return fromTaskModel(toTaskModel(t)), nil
}

// TaskEdit holds the editable fields of a task. Nil fields are unchanged.
type TaskEdit struct {
	Title       *string
	Description *string
	Priority    *task.Priority
	Deadline    *time.Time
	AssigneeIDs *[]string

	// ClearDeadline removes the deadline; it wins over Deadline.
	ClearDeadline bool
}

// UpdateTask applies edit to task id.
func (s *Store) UpdateTask(ctx context.Context, actorID, id string, edit TaskEdit) (task.Task, error) {
	return s.mutate(ctx, actorID, id, ActionEdit, func(t *task.Task) (int, error) {
		if t.IsDeleted() {
			return 0, fmt.Errorf("%w: %s", task.ErrDeleted, t.ID)
		}
		if edit.Title != nil {
			t.Title = *edit.Title
		}
		if edit.Description != nil {
			t.Description = *edit.Description
		}
		if edit.Priority != nil {
			t.Priority = *edit.Priority
		}
		switch {
		case edit.ClearDeadline:
			t.Deadline = nil
		case edit.Deadline != nil:
			d := *edit.Deadline
			t.Deadline = &d
		}
		if edit.AssigneeIDs != nil {
			t.AssigneeIDs = append([]string(nil), (*edit.AssigneeIDs)...)
		}
		return 0, t.Validate()
	})
}

// MoveTask changes the status of an active task.
func (s *Store) MoveTask(ctx context.Context, actorID, id string, to task.Status) (task.Task, error) {
	return s.mutate(ctx, actorID, id, ActionMove, func(t *task.Task) (int, error) {
		return 0, task.Move(t, to)
	})
}

// ArchiveTask moves an active task to the archive.
func (s *Store) ArchiveTask(ctx context.Context, actorID, id string) (task.Task, error) {
	return s.mutate(ctx, actorID, id, ActionArchive, func(t *task.Task) (int, error) {
		return 0, task.Archive(t)
	})
}

// RestoreTask returns an archived task to status to.
func (s *Store) RestoreTask(ctx context.Context, actorID, id string, to task.Status) (task.Task, error) {
	return s.mutate(ctx, actorID, id, ActionRestore, func(t *task.Task) (int, error) {
		return 0, task.Restore(t, to)
	})
}

// SoftDeleteTask marks a task deleted. The row stays and is listed by Trash.
func (s *Store) SoftDeleteTask(ctx context.Context, actorID, id string) (task.Task, error) {
	return s.mutate(ctx, actorID, id, ActionDelete, func(t *task.Task) (int, error) {
		return 0, task.SoftDelete(t, s.now())
	})
}

// ReportQuantity records output from the floor: completed is approved
// output, pending awaits approval. Deltas may be negative for corrections
// but totals never drop below zero.
func (s *Store) ReportQuantity(ctx context.Context, actorID, id string, completedDelta, pendingDelta int) (task.Task, error) {
	return s.mutate(ctx, actorID, id, ActionReport, func(t *task.Task) (int, error) {
		if t.IsDeleted() {
			return 0, fmt.Errorf("%w: %s", task.ErrDeleted, t.ID)
		}
		if !t.IsProduction() {
			return 0, fmt.Errorf("store: task %s is not a production task", t.ID)
		}
		c, p := t.CompletedQuantity+completedDelta, t.PendingQuantity+pendingDelta
		if c < 0 || p < 0 {
			return 0, fmt.Errorf("store: report on %s would make quantities negative", t.ID)
		}
		t.CompletedQuantity, t.PendingQuantity = c, p
		return completedDelta + pendingDelta, nil
	})
}

// ApprovePending moves qty from pending to completed.
func (s *Store) ApprovePending(ctx context.Context, actorID, id string, qty int) (task.Task, error) {
	return s.mutate(ctx, actorID, id, ActionApprove, func(t *task.Task) (int, error) {
		if t.IsDeleted() {
			return 0, fmt.Errorf("%w: %s", task.ErrDeleted, t.ID)
		}
		if qty <= 0 || qty > t.PendingQuantity {
			return 0, fmt.Errorf("store: approve %d on %s: only %d pending", qty, t.ID, t.PendingQuantity)
		}
		t.PendingQuantity -= qty
		t.CompletedQuantity += qty
		return qty, nil
	})
}

// ExistsForStage reports whether a live task exists for the order stage. It
// satisfies production.StageGuard.
func (s *Store) ExistsForStage(ctx context.Context, orderID, stageID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("order_id = ? AND stage_id = ?", orderID, stageID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("store: check stage %s/%s: %w", orderID, stageID, err)
	}
	return n > 0, nil
}

// TaskEvents returns the lifecycle history of a task, oldest first.
func (s *Store) TaskEvents(ctx context.Context, id string) ([]models.TaskEvent, error) {
	var events []models.TaskEvent
	if err := s.db.WithContext(ctx).Where("task_id = ?", id).Order("id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("store: task events %s: %w", id, err)
	}
	return events, nil
}

// mutate loads task id, applies fn and writes the result back with an event
// row in one transaction, then publishes the change. fn returns the quantity
// recorded on the event.
func (s *Store) mutate(ctx context.Context, actorID, id, action string, fn func(*task.Task) (int, error)) (task.Task, error) {
	var before, after task.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := getTaskModel(tx, id, true)
		if err != nil {
			return err
		}
		before = fromTaskModel(m)
		after = before.Clone()
		qty, err := fn(&after)
		if err != nil {
			return err
		}
		after.UpdatedAt = s.now()

		updated := toTaskModel(after)
		assignees := updated.AssignedUsers
		updated.AssignedUsers = nil
		err = tx.Unscoped().Model(&models.Task{}).Where("id = ?", id).
			Select("title", "description", "status", "priority", "deadline",
				"plan_quantity", "done_quantity", "pending_quantity", "updated_at", "deleted_at").
			Updates(&updated).Error
		if err != nil {
			return fmt.Errorf("store: update task %s: %w", id, err)
		}
		if !sameIDs(before.AssigneeIDs, after.AssigneeIDs) {
			if err := tx.Where("task_id = ?", id).Delete(&models.TaskAssignment{}).Error; err != nil {
				return fmt.Errorf("store: reassign task %s: %w", id, err)
			}
			if len(assignees) > 0 {
				if err := tx.Create(&assignees).Error; err != nil {
					return fmt.Errorf("store: reassign task %s: %w", id, err)
				}
			}
		}
		return logEvent(tx, models.TaskEvent{
			TaskID:     id,
			ActorID:    actorID,
			Action:     action,
			FromStatus: string(before.Status),
			ToStatus:   string(after.Status),
			Quantity:   qty,
			CreatedAt:  after.UpdatedAt,
		})
	})
	if err != nil {
		return task.Task{}, err
	}

	after = fromTaskModel(toTaskModel(after))
	op := realtime.OpUpdate
	if action == ActionDelete {
		op = realtime.OpDelete
	}
	s.publishTask(op, after, before.AssigneeIDs)
	return after, nil
}

func logEvent(tx *gorm.DB, ev models.TaskEvent) error {
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("store: log %s event for %s: %w", ev.Action, ev.TaskID, err)
	}
	return nil
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, x := range a {
		seen[x]++
	}
	for _, x := range b {
		if seen[x] == 0 {
			return false
		}
		seen[x]--
	}
	return true
}

func generateUniqueTaskID(tx *gorm.DB) (string, error) {
	for i := 0; i < 10; i++ {
		id, err := task.GenerateID()
		if err != nil {
			return "", err
		}
		var n int64
		if err := tx.Unscoped().Model(&models.Task{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return "", fmt.Errorf("store: check task id: %w", err)
		}
		if n == 0 {
			return id, nil
		}
	}
	return "", errors.New("store: could not generate unique task id after 10 attempts")
}
