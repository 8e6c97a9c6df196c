// Package digest builds the periodic production summary from the task event
// log and posts it to a chat channel on a cron schedule.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/task"
)

// Source is the data a digest is built from.
type Source interface {
	EventsBetween(ctx context.Context, since, until time.Time) ([]models.TaskEvent, error)
	TasksByID(ctx context.Context, ids []string) (map[string]task.Task, error)
	Order(ctx context.Context, id string) (*production.Order, error)
}

// Report holds the floor activity for one period.
type Report struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Created     int
	Done        int
	Archived    int
	Deleted     int
	// Reported is output reported from the floor, approved or not.
	Reported int
	// Approved is pending output approved into completed.
	Approved int
	Orders   []OrderDigest
}

// OrderDigest holds per-order production activity. Quantities are the
// current totals of the order's tasks touched in the period.
type OrderDigest struct {
	OrderID     string
	OrderNumber string
	Created     int
	StagesDone  int
	Planned     int
	Completed   int
	Pending     int
	FinalDone   bool
}

// Empty reports whether nothing happened in the period.
func (r *Report) Empty() bool {
	return r.Created == 0 && r.Done == 0 && r.Archived == 0 && r.Deleted == 0 &&
		r.Reported == 0 && r.Approved == 0
}

// Build reads the events in [since, until) and summarises them.
func Build(ctx context.Context, src Source, since, until time.Time) (*Report, error) {
	events, err := src.EventsBetween(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	report := &Report{PeriodStart: since, PeriodEnd: until}
	if len(events) == 0 {
		return report, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, ev := range events {
		if !seen[ev.TaskID] {
			seen[ev.TaskID] = true
			ids = append(ids, ev.TaskID)
		}
	}
	tasks, err := src.TasksByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}

	orders := make(map[string]*OrderDigest)
	orderFor := func(t task.Task) *OrderDigest {
		if !t.IsProduction() || t.OrderID == "" {
			return nil
		}
		od, ok := orders[t.OrderID]
		if !ok {
			od = &OrderDigest{OrderID: t.OrderID}
			orders[t.OrderID] = od
		}
		return od
	}

	for _, ev := range events {
		t, known := tasks[ev.TaskID]
		var od *OrderDigest
		if known {
			od = orderFor(t)
		}
		switch ev.Action {
		case store.ActionCreate:
			report.Created++
			if od != nil {
				od.Created++
			}
		case store.ActionMove:
			if ev.ToStatus == string(task.StatusDone) && ev.FromStatus != string(task.StatusDone) {
				report.Done++
				if od != nil {
					od.StagesDone++
					if t.IsFinalStage {
						od.FinalDone = true
					}
				}
			}
		case store.ActionArchive:
			report.Archived++
		case store.ActionDelete:
			report.Deleted++
		case store.ActionReport:
			report.Reported += ev.Quantity
		case store.ActionApprove:
			report.Approved += ev.Quantity
		}
	}

	// Quantities come from the current rows, counted once per task.
	for _, id := range ids {
		t, ok := tasks[id]
		if !ok {
			continue
		}
		if od := orderFor(t); od != nil {
			od.Planned += t.PlannedQuantity
			od.Completed += t.CompletedQuantity
			od.Pending += t.PendingQuantity
		}
	}

	for _, od := range orders {
		od.OrderNumber = od.OrderID
		if o, err := src.Order(ctx, od.OrderID); err == nil {
			od.OrderNumber = o.OrderNumber
		}
		report.Orders = append(report.Orders, *od)
	}
	sort.Slice(report.Orders, func(i, j int) bool {
		return report.Orders[i].OrderNumber < report.Orders[j].OrderNumber
	})
	return report, nil
}
