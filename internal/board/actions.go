package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/notify"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/task"
)

// NewTask is the create-task form.
type NewTask struct {
	Title       string
	Description string
	Priority    task.Priority
	Deadline    *time.Time
	AssigneeIDs []string
}

// Create stores a simple task.
func (c *Controller) Create(ctx context.Context, in NewTask) (task.Task, error) {
	if err := c.checker.Require(access.ModuleTasks, access.Edit); err != nil {
		return task.Task{}, err
	}
	priority, err := task.ParsePriority(string(in.Priority))
	if err != nil {
		return task.Task{}, err
	}
	t := task.Task{
		Type:        task.TypeSimple,
		Title:       in.Title,
		Description: in.Description,
		Status:      task.StatusTodo,
		Priority:    priority,
		Deadline:    in.Deadline,
		AssigneeIDs: in.AssigneeIDs,
		CreatedBy:   c.actor().ID,
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	created, err := c.backend.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, fmt.Errorf("%w: create task: %w", ErrPersistence, err)
	}
	c.upsert(created)
	return created, nil
}

// ProductionForm is the production-task form for one order.
type ProductionForm struct {
	OrderID     string
	Stages      map[string]production.StageInput
	Priority    task.Priority
	Deadline    *time.Time
	Description string
}

// ProductionOutcome is what a production fan-out did.
type ProductionOutcome struct {
	Result production.Result
	// Report is the notification delivery report for created tasks.
	Report notify.Report
}

// ProductionDefaults returns the per-stage form pre-filled from the order's
// job cycle.
func (c *Controller) ProductionDefaults(ctx context.Context, orderID string) (map[string]production.StageInput, error) {
	_, cycle, err := c.orderCycle(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return production.DefaultsFor(*cycle), nil
}

func (c *Controller) orderCycle(ctx context.Context, orderID string) (*production.Order, *production.JobCycle, error) {
	order, err := c.backend.Order(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.WorkCycleID == "" {
		return nil, nil, fmt.Errorf("%w: order %s has no job cycle", production.ErrNoStages, order.OrderNumber)
	}
	cycle, err := c.backend.JobCycle(ctx, order.WorkCycleID)
	if err != nil {
		return nil, nil, err
	}
	return order, cycle, nil
}

// CreateProduction expands the order into one task per assigned stage and
// creates them one by one. A failure part way leaves the created tasks in
// place and returns ErrPartialFanOut; notifications go out only for tasks
// that exist.
func (c *Controller) CreateProduction(ctx context.Context, form ProductionForm) (ProductionOutcome, error) {
	if err := c.checker.Require(access.ModuleTasks, access.Edit); err != nil {
		return ProductionOutcome{}, err
	}
	order, cycle, err := c.orderCycle(ctx, form.OrderID)
	if err != nil {
		return ProductionOutcome{}, err
	}
	plan, err := production.Expand(production.ExpandRequest{
		Order:       *order,
		Cycle:       *cycle,
		Stages:      form.Stages,
		Priority:    form.Priority,
		Deadline:    form.Deadline,
		Description: form.Description,
		CreatedBy:   c.actor().ID,
		Now:         time.Now(),
	})
	if err != nil {
		return ProductionOutcome{}, err
	}

	opts := production.RunOpts{Logger: c.logger}
	if c.guard {
		opts.Guard = c.backend
	}
	res := production.Run(ctx, c.backend, plan, opts)
	for _, t := range res.Created {
		c.upsert(t)
	}

	out := ProductionOutcome{Result: res}
	if c.notifier != nil && len(res.Intents) > 0 {
		out.Report = c.notifier.ExecuteIntents(context.WithoutCancel(ctx), res.Intents)
	}

	if res.Failed != nil {
		if res.Partial {
			return out, fmt.Errorf("%w: %d of %d created: %w", ErrPartialFanOut, len(res.Created), len(plan.Tasks), res.Failed)
		}
		return out, fmt.Errorf("%w: %w", ErrPersistence, res.Failed)
	}
	return out, nil
}

// Edit applies edit to task id after the write succeeds.
func (c *Controller) Edit(ctx context.Context, id string, edit store.TaskEdit) (task.Task, error) {
	if err := c.checker.Require(access.ModuleTasks, access.Edit); err != nil {
		return task.Task{}, err
	}
	if _, ok := c.Task(id); !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	updated, err := c.backend.UpdateTask(ctx, c.actor().ID, id, edit)
	if err != nil {
		if errors.Is(err, task.ErrDeleted) {
			return task.Task{}, err
		}
		return task.Task{}, fmt.Errorf("%w: edit %s: %w", ErrPersistence, id, err)
	}
	c.upsert(updated)
	return updated, nil
}

// Move changes a task's status. The board shows the new status at once; if
// the write fails the task is marked stale and ErrPersistence is returned.
func (c *Controller) Move(ctx context.Context, id string, to task.Status) error {
	return c.optimistic(ctx, id, func(t *task.Task) error {
		return task.Move(t, to)
	}, func(ctx context.Context) (task.Task, error) {
		return c.backend.MoveTask(ctx, c.actor().ID, id, to)
	})
}

// Archive moves an active task to the archive. confirm must be true.
func (c *Controller) Archive(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}
	return c.optimistic(ctx, id, task.Archive, func(ctx context.Context) (task.Task, error) {
		return c.backend.ArchiveTask(ctx, c.actor().ID, id)
	})
}

// Delete soft-deletes a task; it leaves every column at once. confirm must
// be true.
func (c *Controller) Delete(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}
	return c.optimistic(ctx, id, func(t *task.Task) error {
		return task.SoftDelete(t, time.Now())
	}, func(ctx context.Context) (task.Task, error) {
		return c.backend.SoftDeleteTask(ctx, c.actor().ID, id)
	})
}

// optimistic re-checks permission, applies local to the board copy of id,
// then persists with remote.
func (c *Controller) optimistic(ctx context.Context, id string, local func(*task.Task) error, remote func(context.Context) (task.Task, error)) error {
	if err := c.checker.Require(access.ModuleTasks, access.Edit); err != nil {
		return err
	}

	c.mu.Lock()
	e, ok := c.tasks[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	next := e.task.Clone()
	if err := local(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	c.tasks[id] = &entry{task: next, pending: true}
	c.mu.Unlock()

	saved, err := remote(ctx)
	if err != nil {
		c.mu.Lock()
		if cur, ok := c.tasks[id]; ok && cur.pending {
			cur.pending = false
			cur.stale = true
		}
		c.mu.Unlock()
		c.logger.Error().Err(err).Str("taskId", id).Msg("task change not saved")
		return fmt.Errorf("%w: %s: %w", ErrPersistence, id, err)
	}
	c.upsert(saved)
	return nil
}

// Reload re-reads the task list, clearing stale marks.
func (c *Controller) Reload(ctx context.Context) error {
	actor := c.actor()
	tasks, err := c.backend.ListTasks(ctx, store.TaskQuery{ActorID: actor.ID, AllTasks: c.seesAll()})
	if err != nil {
		return fmt.Errorf("board: reload tasks: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = make(map[string]*entry, len(tasks))
	for _, t := range tasks {
		c.tasks[t.ID] = &entry{task: t}
	}
	c.loaded = true
	return nil
}
