package task

// Board is a task list partitioned into rendered columns. Soft-deleted tasks
// appear in no column.
type Board struct {
	Todo       []Task `json:"todo"`
	InProgress []Task `json:"inProgress"`
	Done       []Task `json:"done"`
	Archived   []Task `json:"archived"`
}

// Partition splits tasks into board columns, preserving input order.
func Partition(tasks []Task) Board {
	var b Board
	for _, t := range tasks {
		if t.IsDeleted() {
			continue
		}
		switch t.Status {
		case StatusTodo:
			b.Todo = append(b.Todo, t)
		case StatusInProgress:
			b.InProgress = append(b.InProgress, t)
		case StatusDone:
			b.Done = append(b.Done, t)
		case StatusArchived:
			b.Archived = append(b.Archived, t)
		}
	}
	return b
}

// Active returns all tasks in the three active columns.
func (b Board) Active() []Task {
	out := make([]Task, 0, len(b.Todo)+len(b.InProgress)+len(b.Done))
	out = append(out, b.Todo...)
	out = append(out, b.InProgress...)
	return append(out, b.Done...)
}

// Count returns the number of tasks in column s.
func (b Board) Count(s Status) int {
	switch s {
	case StatusTodo:
		return len(b.Todo)
	case StatusInProgress:
		return len(b.InProgress)
	case StatusDone:
		return len(b.Done)
	case StatusArchived:
		return len(b.Archived)
	}
	return 0
}

// ActiveTasks returns the tasks that are neither archived nor deleted.
func ActiveTasks(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if t.IsDeleted() || t.Status == StatusArchived {
			continue
		}
		out = append(out, t)
	}
	return out
}
