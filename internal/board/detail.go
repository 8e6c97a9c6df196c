package board

import (
	"context"
	"fmt"

	"github.com/zulandar/floorboard/internal/techdoc"
)

// Open selects task id for the detail view and resolves its documentation
// in the background. Opening another task supersedes this one; the
// returned channel is closed without a value if that happens first.
func (c *Controller) Open(ctx context.Context, id string) (<-chan techdoc.Result, error) {
	t, ok := c.Task(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if c.latest == nil {
		ch := make(chan techdoc.Result, 1)
		ch <- techdoc.Result{TaskID: id}
		close(ch)
		return ch, nil
	}
	return c.latest.Select(ctx, t), nil
}

// Detail returns the open task and its documentation once resolved.
func (c *Controller) Detail() (taskID string, res *techdoc.Result) {
	if c.latest == nil {
		return "", nil
	}
	return c.latest.Current()
}

// CloseDetail drops the selection and cancels any resolution in flight.
func (c *Controller) CloseDetail() {
	if c.latest != nil {
		c.latest.Clear()
	}
}
