package techdoc

import (
	"context"
	"sync"

	"github.com/zulandar/floorboard/internal/task"
)

// Latest runs resolutions in the background for the currently selected task.
// Selecting another task cancels the previous resolution; a result that
// arrives for a task that is no longer selected is discarded.
type Latest struct {
	resolver *Resolver

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	selected string
	result   *Result
}

// NewLatest wraps r.
func NewLatest(r *Resolver) *Latest {
	return &Latest{resolver: r}
}

// Select starts resolving t and supersedes any earlier selection. The
// returned channel yields the result if it is still current when it
// completes, and is closed either way.
func (l *Latest) Select(ctx context.Context, t task.Task) <-chan Result {
	out := make(chan Result, 1)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	seq := l.seq
	rctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.selected = t.ID
	l.result = nil
	l.mu.Unlock()

	go func() {
		defer close(out)
		defer cancel()
		res := l.resolver.Resolve(rctx, t)

		l.mu.Lock()
		defer l.mu.Unlock()
		if seq != l.seq || rctx.Err() != nil {
			return
		}
		l.result = &res
		out <- res
	}()
	return out
}

// Current returns the selected task id and its result once resolved.
func (l *Latest) Current() (taskID string, res *Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selected, l.result
}

// Clear cancels any in-flight resolution and drops the selection.
func (l *Latest) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
	l.selected = ""
	l.result = nil
}
