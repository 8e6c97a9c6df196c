// Package task defines the board task entity, its status machine and the
// derived views (progress, board partitions) rendered from it.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Type distinguishes free-form tasks from tasks spawned for an order stage.
type Type string

const (
	TypeSimple     Type = "simple"
	TypeProduction Type = "production"
)

// Priority is the urgency shown on a task card.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string. Empty input yields medium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("%w: priority %q", ErrInvalid, s)
	}
}

// Task is the core entity rendered on the board. The production fields are
// zero for simple tasks.
type Task struct {
	ID          string     `json:"id"`
	Type        Type       `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	AssigneeIDs []string   `json:"assigneeIds"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`

	OrderID           string `json:"orderId,omitempty"`
	StageID           string `json:"stageId,omitempty"`
	PlannedQuantity   int    `json:"plannedQuantity"`
	CompletedQuantity int    `json:"completedQuantity"`
	PendingQuantity   int    `json:"pendingQuantity"`
	IsFinalStage      bool   `json:"isFinalStage"`
}

// IsDeleted reports whether the task carries a soft-delete marker.
func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

// IsProduction reports whether the task was spawned for an order stage.
func (t *Task) IsProduction() bool {
	return t.Type == TypeProduction
}

// AssignedTo reports whether userID is one of the task's assignees.
func (t *Task) AssignedTo(userID string) bool {
	return slices.Contains(t.AssigneeIDs, userID)
}

// Clone returns a deep copy safe to mutate independently.
func (t Task) Clone() Task {
	out := t
	out.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}
	if t.DeletedAt != nil {
		d := *t.DeletedAt
		out.DeletedAt = &d
	}
	return out
}

// Validate checks the fields required before a task is stored.
func (t *Task) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Title) == "" {
		errs = append(errs, fmt.Errorf("title is required"))
	}
	switch t.Type {
	case TypeSimple, TypeProduction:
	default:
		errs = append(errs, fmt.Errorf("invalid type %q", t.Type))
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		errs = append(errs, fmt.Errorf("invalid status %q", t.Status))
	}
	if _, err := ParsePriority(string(t.Priority)); err != nil {
		errs = append(errs, fmt.Errorf("invalid priority %q", t.Priority))
	}
	if t.Type == TypeProduction && t.OrderID == "" {
		errs = append(errs, fmt.Errorf("production task requires an order"))
	}
	if t.PlannedQuantity < 0 || t.CompletedQuantity < 0 || t.PendingQuantity < 0 {
		errs = append(errs, fmt.Errorf("quantities must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// GenerateID creates a task ID in tsk-xxxxxxxx format (8-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("task: generate ID: %w", err)
	}
	return "tsk-" + hex.EncodeToString(b), nil
}
