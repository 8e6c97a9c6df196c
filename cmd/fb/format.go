package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/task"
)

// truncate shortens s to max runes, appending "..." when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// parseDeadline accepts a date (2006-01-02, end of that day in local time)
// or an RFC 3339 timestamp. Empty input means no deadline.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("deadline %q: want YYYY-MM-DD or RFC 3339", s)
	}
	end := d.Add(24*time.Hour - time.Second)
	return &end, nil
}

func formatDeadline(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatAssignees(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ",")
}

// formatProgress renders a production task's quantities, e.g.
// "45/100 (45%) +10 pending".
func formatProgress(t task.Task) string {
	if !t.IsProduction() {
		return "-"
	}
	p := task.ProgressOf(t)
	s := fmt.Sprintf("%d/%d (%.0f%%)", t.CompletedQuantity, t.PlannedQuantity, p.Completed)
	if t.PendingQuantity > 0 {
		s += fmt.Sprintf(" +%d pending", t.PendingQuantity)
	}
	return s
}

// parseStageFlag parses one --stage value of the form
// stage-id=user1,user2[:quantity]. A missing quantity leaves the planned
// quantity to the order default.
func parseStageFlag(v string) (string, production.StageInput, error) {
	id, rest, ok := strings.Cut(v, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", production.StageInput{}, fmt.Errorf("stage %q: want stage-id=user[,user...][:quantity]", v)
	}
	var in production.StageInput
	users := rest
	if u, q, hasQty := strings.Cut(rest, ":"); hasQty {
		users = u
		n, err := strconv.Atoi(strings.TrimSpace(q))
		if err != nil || n < 0 {
			return "", production.StageInput{}, fmt.Errorf("stage %q: quantity %q is not a non-negative number", v, q)
		}
		in.Quantity = n
	}
	for _, u := range strings.Split(users, ",") {
		if u = strings.TrimSpace(u); u != "" {
			in.AssigneeIDs = append(in.AssigneeIDs, u)
		}
	}
	return id, in, nil
}
