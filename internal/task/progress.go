package task

// Progress holds the rendered completion bands of a production task, each a
// percentage in [0, 100].
type Progress struct {
	Completed float64 `json:"completed"`
	Pending   float64 `json:"pending"`
}

// ProgressOf computes the progress bands of t. A planned quantity of zero or
// less renders as 0%.
func ProgressOf(t Task) Progress {
	return Progress{
		Completed: Percent(t.CompletedQuantity, t.PlannedQuantity),
		Pending:   Percent(t.PendingQuantity, t.PlannedQuantity),
	}
}

// Percent returns quantity/planned as a percentage clamped to [0, 100].
func Percent(quantity, planned int) float64 {
	if planned <= 0 {
		return 0
	}
	p := float64(quantity) / float64(planned) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
