package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

var (
	// ErrInvalidTransition is returned for a move the status machine forbids.
	ErrInvalidTransition = errors.New("task: invalid status transition")
	// ErrDeleted is returned when mutating a soft-deleted task.
	ErrDeleted = errors.New("task: task is deleted")
	// ErrInvalid is returned for a task or field value that fails validation.
	ErrInvalid = errors.New("task: invalid")
)

// ActiveStatuses lists the board columns in display order.
var ActiveStatuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusTodo, StatusInProgress, StatusDone, StatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalid, s)
	}
}

// IsActive reports whether s is one of the three board columns.
func (s Status) IsActive() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// CanMove reports whether a board move from one status to another is allowed.
// Moves among active statuses are unrestricted in every direction.
func CanMove(from, to Status) bool {
	return from.IsActive() && to.IsActive()
}

// CanArchive reports whether a task in status from may be archived.
func CanArchive(from Status) bool {
	return from.IsActive()
}

// Move changes the status of an active task. Moving to the current status is
// a no-op.
func Move(t *Task, to Status) error {
	if t.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrDeleted, t.ID)
	}
	if !CanMove(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}

// Archive removes an active task from the board without deleting it.
func Archive(t *Task) error {
	if t.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrDeleted, t.ID)
	}
	if !CanArchive(t.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusArchived)
	}
	t.Status = StatusArchived
	return nil
}

// Restore returns an archived task to an active status.
func Restore(t *Task, to Status) error {
	if t.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrDeleted, t.ID)
	}
	if t.Status != StatusArchived || !to.IsActive() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}

// SoftDelete marks the task deleted at now. The status is left unchanged so
// a recovery view can show where the task was.
func SoftDelete(t *Task, now time.Time) error {
	if t.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrDeleted, t.ID)
	}
	t.DeletedAt = &now
	return nil
}
