// Package production expands an order into per-stage production tasks.
//
// Expansion is split in two: Expand is a pure function that builds the task
// records and the notification intents for one order, and Run creates those
// tasks one by one through a TaskCreator. Run is deliberately non-atomic:
// if stage N fails, stages before N stay created and stages after N are not
// attempted. The returned Result says exactly what happened so the caller
// can report a partial fan-out.
package production

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zulandar/floorboard/internal/task"
)

var (
	// ErrNoStages is returned when the order's job cycle has no stages.
	ErrNoStages = errors.New("production: job cycle has no stages")
	// ErrNothingAssigned is returned when no stage has an assignee.
	ErrNothingAssigned = errors.New("production: no stage has an assignee")
)

// Order is a production order as seen by expansion.
type Order struct {
	ID          string     `json:"id"`
	OrderNumber string     `json:"orderNumber"`
	ProductID   string     `json:"productId"`
	WorkCycleID string     `json:"workCycleId,omitempty"`
	Quantity    int        `json:"quantity"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// Stage is one step of a JobCycle.
type Stage struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Machine            string   `json:"machine,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	DefaultResponsible []string `json:"defaultResponsible,omitempty"`
	DefaultCount       int      `json:"defaultCount,omitempty"`
	SetupMapID         string   `json:"setupMapId,omitempty"`
}

// JobCycle is an ordered production template.
type JobCycle struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`
}

// Stage returns the stage with the given id.
func (c JobCycle) Stage(id string) (Stage, bool) {
	for _, s := range c.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// StageInput is the per-stage part of the production form.
type StageInput struct {
	Quantity    int      `json:"quantity"`
	AssigneeIDs []string `json:"assigneeIds"`
}

// ExpandRequest is everything Expand needs for one order.
type ExpandRequest struct {
	Order       Order
	Cycle       JobCycle
	Stages      map[string]StageInput // keyed by stage id
	Priority    task.Priority
	Deadline    *time.Time // falls back to the order deadline
	Description string
	CreatedBy   string
	Now         time.Time
}

// NotificationKind is the kind attached to assignment notifications.
const NotificationKind = "production"

// NotificationIntent is a pending "you were assigned" message. Intents are
// executed by the caller after the task they refer to has been created.
type NotificationIntent struct {
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	TaskIndex int    `json:"taskIndex"`
	TaskID    string `json:"taskId,omitempty"`
}

// Plan is the output of Expand: the tasks to create in stage order and the
// notifications to send for them.
type Plan struct {
	OrderID string
	Tasks   []task.Task
	Intents []NotificationIntent
}

// IntentsFor returns the intents belonging to Tasks[i].
func (p Plan) IntentsFor(i int) []NotificationIntent {
	var out []NotificationIntent
	for _, in := range p.Intents {
		if in.TaskIndex == i {
			out = append(out, in)
		}
	}
	return out
}

// Title builds the title of the task for one stage of an order.
func Title(orderNumber, stageName string) string {
	return orderNumber + " - " + stageName
}

// AssignmentMessage is the notification text sent to each assignee.
func AssignmentMessage(title string) string {
	return fmt.Sprintf("You have been assigned a new production task: %s", title)
}

// Expand builds one task per stage that has at least one assignee. Stages
// without assignees are skipped silently. Only the last stage of the cycle
// is marked final, so if that stage is skipped no task is final.
func Expand(req ExpandRequest) (Plan, error) {
	if len(req.Cycle.Stages) == 0 {
		return Plan{}, fmt.Errorf("%w: cycle %s", ErrNoStages, req.Cycle.ID)
	}
	priority, err := task.ParsePriority(string(req.Priority))
	if err != nil {
		return Plan{}, fmt.Errorf("production: %w", err)
	}
	deadline := req.Deadline
	if deadline == nil {
		deadline = req.Order.Deadline
	}

	plan := Plan{OrderID: req.Order.ID}
	last := len(req.Cycle.Stages) - 1
	for i, stage := range req.Cycle.Stages {
		in := req.Stages[stage.ID]
		assignees := cleanIDs(in.AssigneeIDs)
		if len(assignees) == 0 {
			continue
		}

		planned := in.Quantity
		if planned <= 0 {
			planned = req.Order.Quantity
		}

		// Tasks never share a deadline pointer.
		var due *time.Time
		if deadline != nil {
			d := *deadline
			due = &d
		}
		t := task.Task{
			Type:            task.TypeProduction,
			Title:           Title(req.Order.OrderNumber, stage.Name),
			Description:     req.Description,
			Status:          task.StatusTodo,
			Priority:        priority,
			AssigneeIDs:     assignees,
			CreatedBy:       req.CreatedBy,
			CreatedAt:       req.Now,
			Deadline:        due,
			OrderID:         req.Order.ID,
			StageID:         stage.ID,
			PlannedQuantity: planned,
			IsFinalStage:    i == last,
		}
		idx := len(plan.Tasks)
		plan.Tasks = append(plan.Tasks, t)
		for _, uid := range assignees {
			plan.Intents = append(plan.Intents, NotificationIntent{
				UserID:    uid,
				Message:   AssignmentMessage(t.Title),
				Kind:      NotificationKind,
				TaskIndex: idx,
			})
		}
	}

	if len(plan.Tasks) == 0 {
		return Plan{}, fmt.Errorf("%w: order %s", ErrNothingAssigned, req.Order.OrderNumber)
	}
	return plan, nil
}

// DefaultsFor pre-fills the production form from each stage's default
// responsible users and default count.
func DefaultsFor(cycle JobCycle) map[string]StageInput {
	out := make(map[string]StageInput, len(cycle.Stages))
	for _, s := range cycle.Stages {
		out[s.ID] = StageInput{
			Quantity:    s.DefaultCount,
			AssigneeIDs: slices.Clone(s.DefaultResponsible),
		}
	}
	return out
}

// cleanIDs drops blanks and duplicates, keeping first-seen order.
func cleanIDs(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
