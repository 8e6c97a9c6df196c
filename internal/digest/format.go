package digest

import (
	"fmt"
	"strings"

	"github.com/zulandar/floorboard/internal/notify"
	"github.com/zulandar/floorboard/internal/task"
)

// colorInfo is the attachment color of digest posts.
const colorInfo = "#2196F3"

// Format renders r as a chat post.
func Format(r *Report) notify.Post {
	var lines []string
	lines = append(lines, fmt.Sprintf("*Period*: %s - %s",
		r.PeriodStart.Format("Jan 2 15:04"),
		r.PeriodEnd.Format("Jan 2 15:04")))
	lines = append(lines, fmt.Sprintf("*Tasks*: %d created, %d done, %d archived",
		r.Created, r.Done, r.Archived))
	if r.Deleted > 0 {
		lines = append(lines, fmt.Sprintf("*Deleted*: %d", r.Deleted))
	}
	if r.Reported > 0 || r.Approved > 0 {
		lines = append(lines, fmt.Sprintf("*Output*: %d reported, %d approved", r.Reported, r.Approved))
	}

	if len(r.Orders) > 0 {
		lines = append(lines, "", "*Per Order*:")
		for _, od := range r.Orders {
			line := fmt.Sprintf("  %s: %d/%d done (%.0f%%)", od.OrderNumber, od.Completed, od.Planned,
				task.Percent(od.Completed, od.Planned))
			if od.Pending > 0 {
				line += fmt.Sprintf(", %d pending", od.Pending)
			}
			if od.StagesDone > 0 {
				line += fmt.Sprintf(", %d stage(s) finished", od.StagesDone)
			}
			if od.FinalDone {
				line += ", final stage done"
			}
			lines = append(lines, line)
		}
	}

	fields := []notify.Field{
		{Name: "Created", Value: fmt.Sprintf("%d", r.Created), Short: true},
		{Name: "Done", Value: fmt.Sprintf("%d", r.Done), Short: true},
		{Name: "Archived", Value: fmt.Sprintf("%d", r.Archived), Short: true},
	}
	if r.Reported > 0 {
		fields = append(fields, notify.Field{Name: "Reported", Value: fmt.Sprintf("%d", r.Reported), Short: true})
	}

	return notify.Post{
		Title:  "Production Digest",
		Text:   strings.Join(lines, "\n"),
		Color:  colorInfo,
		Fields: fields,
	}
}
