package production

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/task"
)

// TaskCreator persists one task and returns it with its assigned ID.
type TaskCreator interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
}

// StageGuard reports whether a live task already exists for an order stage.
type StageGuard interface {
	ExistsForStage(ctx context.Context, orderID, stageID string) (bool, error)
}

// RunOpts holds optional parameters for Run.
type RunOpts struct {
	// Guard, when set, skips stages that already have a task for the order.
	// It narrows but does not close the window for concurrent duplicates.
	Guard  StageGuard
	Logger zerolog.Logger
}

// StageFailure describes the stage at which a fan-out stopped.
type StageFailure struct {
	StageID string
	Title   string
	Err     error
}

func (f *StageFailure) Error() string {
	return fmt.Sprintf("production: create %q (stage %s): %v", f.Title, f.StageID, f.Err)
}

func (f *StageFailure) Unwrap() error { return f.Err }

// Result reports the outcome of Run.
type Result struct {
	Created []task.Task
	// Skipped holds stage IDs the guard found already materialised.
	Skipped []string
	// Intents covers only tasks in Created, with TaskID filled in.
	Intents []NotificationIntent
	Failed  *StageFailure
	// Partial is true when some tasks were created before a failure.
	Partial bool
	// NotAttempted counts the stages after the failure.
	NotAttempted int
}

// Err returns the stage failure, or nil when every stage was handled.
func (r Result) Err() error {
	if r.Failed == nil {
		return nil
	}
	return r.Failed
}

// Run creates the plan's tasks in stage order, stopping at the first error.
// There is no rollback: tasks created before a failure remain.
func Run(ctx context.Context, creator TaskCreator, plan Plan, opts RunOpts) Result {
	var res Result
	for i, t := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			res.fail(t, err, len(plan.Tasks)-i-1)
			break
		}

		if opts.Guard != nil && t.StageID != "" {
			exists, err := opts.Guard.ExistsForStage(ctx, t.OrderID, t.StageID)
			if err != nil {
				res.fail(t, fmt.Errorf("check existing: %w", err), len(plan.Tasks)-i-1)
				break
			}
			if exists {
				opts.Logger.Info().Str("orderId", t.OrderID).Str("stageId", t.StageID).Msg("stage already has a task; skipping")
				res.Skipped = append(res.Skipped, t.StageID)
				continue
			}
		}

		created, err := creator.CreateTask(ctx, t)
		if err != nil {
			res.fail(t, err, len(plan.Tasks)-i-1)
			break
		}
		res.Created = append(res.Created, created)
		for _, in := range plan.IntentsFor(i) {
			in.TaskIndex = len(res.Created) - 1
			in.TaskID = created.ID
			res.Intents = append(res.Intents, in)
		}
	}

	if res.Failed != nil {
		res.Partial = len(res.Created) > 0
		opts.Logger.Warn().Err(res.Failed.Err).
			Str("orderId", plan.OrderID).
			Str("stageId", res.Failed.StageID).
			Int("created", len(res.Created)).
			Int("notAttempted", res.NotAttempted).
			Msg("production fan-out stopped")
	}
	return res
}

func (r *Result) fail(t task.Task, err error, remaining int) {
	r.Failed = &StageFailure{StageID: t.StageID, Title: t.Title, Err: err}
	r.NotAttempted = remaining
}
