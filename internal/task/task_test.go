package task

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestGenerateID_Format(t *testing.T) {
	id, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID() error: %v", err)
	}
	if !strings.HasPrefix(id, "tsk-") {
		t.Errorf("ID %q missing tsk- prefix", id)
	}
	if len(id) != 12 {
		t.Errorf("ID length = %d, want 12; id = %q", len(id), id)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"todo", StatusTodo, false},
		{"in_progress", StatusInProgress, false},
		{"done", StatusDone, false},
		{"archived", StatusArchived, false},
		{"open", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	if p, err := ParsePriority(""); err != nil || p != PriorityMedium {
		t.Errorf("ParsePriority(\"\") = %q, %v; want medium", p, err)
	}
	if p, err := ParsePriority("HIGH"); err != nil || p != PriorityHigh {
		t.Errorf("ParsePriority(HIGH) = %q, %v; want high", p, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("ParsePriority(urgent) expected error")
	}
}

func TestCanMove_ActiveUnrestricted(t *testing.T) {
	for _, from := range ActiveStatuses {
		for _, to := range ActiveStatuses {
			if !CanMove(from, to) {
				t.Errorf("CanMove(%s, %s) = false, want true", from, to)
			}
		}
	}
}

func TestCanMove_ArchivedBlocked(t *testing.T) {
	for _, s := range ActiveStatuses {
		if CanMove(StatusArchived, s) {
			t.Errorf("CanMove(archived, %s) = true, want false", s)
		}
		if CanMove(s, StatusArchived) {
			t.Errorf("CanMove(%s, archived) = true, want false (use Archive)", s)
		}
	}
}

func TestMove_DoneBackToTodo(t *testing.T) {
	tk := Task{ID: "tsk-1", Status: StatusDone}
	if err := Move(&tk, StatusTodo); err != nil {
		t.Fatalf("Move(done -> todo): %v", err)
	}
	if tk.Status != StatusTodo {
		t.Errorf("Status = %q, want %q", tk.Status, StatusTodo)
	}
}

func TestMove_Deleted(t *testing.T) {
	now := time.Now()
	tk := Task{ID: "tsk-1", Status: StatusTodo, DeletedAt: &now}
	err := Move(&tk, StatusDone)
	if !errors.Is(err, ErrDeleted) {
		t.Errorf("Move on deleted task error = %v, want ErrDeleted", err)
	}
}

func TestMove_FromArchived(t *testing.T) {
	tk := Task{ID: "tsk-1", Status: StatusArchived}
	err := Move(&tk, StatusTodo)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Move(archived -> todo) error = %v, want ErrInvalidTransition", err)
	}
}

func TestArchive(t *testing.T) {
	for _, s := range ActiveStatuses {
		tk := Task{ID: "tsk-1", Status: s}
		if err := Archive(&tk); err != nil {
			t.Errorf("Archive from %s: %v", s, err)
		}
		if tk.Status != StatusArchived {
			t.Errorf("Status after Archive = %q", tk.Status)
		}
	}
	tk := Task{ID: "tsk-1", Status: StatusArchived}
	if err := Archive(&tk); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Archive twice error = %v, want ErrInvalidTransition", err)
	}
}

func TestRestore(t *testing.T) {
	tk := Task{ID: "tsk-1", Status: StatusArchived}
	if err := Restore(&tk, StatusInProgress); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if tk.Status != StatusInProgress {
		t.Errorf("Status = %q, want in_progress", tk.Status)
	}
	if err := Restore(&tk, StatusTodo); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Restore of active task error = %v, want ErrInvalidTransition", err)
	}
}

func TestSoftDelete(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tk := Task{ID: "tsk-1", Status: StatusInProgress}
	if err := SoftDelete(&tk, now); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !tk.IsDeleted() || !tk.DeletedAt.Equal(now) {
		t.Errorf("DeletedAt = %v, want %v", tk.DeletedAt, now)
	}
	if tk.Status != StatusInProgress {
		t.Errorf("Status changed to %q", tk.Status)
	}
	if err := SoftDelete(&tk, now); !errors.Is(err, ErrDeleted) {
		t.Errorf("second SoftDelete error = %v, want ErrDeleted", err)
	}
}

func TestStateMachine_LeavesQuantities(t *testing.T) {
	tk := Task{ID: "tsk-1", Status: StatusTodo, PlannedQuantity: 10, CompletedQuantity: 3, PendingQuantity: 2}
	_ = Move(&tk, StatusDone)
	_ = Archive(&tk)
	if tk.PlannedQuantity != 10 || tk.CompletedQuantity != 3 || tk.PendingQuantity != 2 {
		t.Errorf("quantities mutated: %+v", tk)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		qty, planned int
		want         float64
	}{
		{5, 0, 0},
		{5, -1, 0},
		{0, 10, 0},
		{5, 10, 50},
		{15, 10, 100},
		{-3, 10, 0},
		{1, 3, 100.0 / 3},
	}
	for _, tt := range tests {
		got := Percent(tt.qty, tt.planned)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("Percent(%d, %d) = %v, not finite", tt.qty, tt.planned, got)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Percent(%d, %d) = %v, want %v", tt.qty, tt.planned, got, tt.want)
		}
	}
}

func TestProgressOf_ZeroPlanned(t *testing.T) {
	p := ProgressOf(Task{PlannedQuantity: 0, CompletedQuantity: 5, PendingQuantity: 2})
	if p.Completed != 0 || p.Pending != 0 {
		t.Errorf("ProgressOf = %+v, want zero", p)
	}
}

func TestProgressOf_Bands(t *testing.T) {
	p := ProgressOf(Task{PlannedQuantity: 20, CompletedQuantity: 10, PendingQuantity: 5})
	if p.Completed != 50 {
		t.Errorf("Completed = %v, want 50", p.Completed)
	}
	if p.Pending != 25 {
		t.Errorf("Pending = %v, want 25", p.Pending)
	}
}

func TestPartition(t *testing.T) {
	now := time.Now()
	tasks := []Task{
		{ID: "a", Status: StatusTodo},
		{ID: "b", Status: StatusInProgress},
		{ID: "c", Status: StatusDone},
		{ID: "d", Status: StatusArchived},
		{ID: "e", Status: StatusTodo, DeletedAt: &now},
		{ID: "f", Status: StatusArchived, DeletedAt: &now},
		{ID: "g", Status: StatusTodo},
	}
	b := Partition(tasks)

	if got := ids(b.Todo); got != "a,g" {
		t.Errorf("Todo = %s, want a,g", got)
	}
	if got := ids(b.InProgress); got != "b" {
		t.Errorf("InProgress = %s, want b", got)
	}
	if got := ids(b.Done); got != "c" {
		t.Errorf("Done = %s, want c", got)
	}
	if got := ids(b.Archived); got != "d" {
		t.Errorf("Archived = %s, want d", got)
	}
	if got := ids(b.Active()); got != "a,g,b,c" {
		t.Errorf("Active = %s, want a,g,b,c", got)
	}
	if b.Count(StatusTodo) != 2 {
		t.Errorf("Count(todo) = %d, want 2", b.Count(StatusTodo))
	}
}

func TestActiveTasks_ArchiveKeepsRecord(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: StatusTodo},
		{ID: "b", Status: StatusDone},
	}
	if err := Archive(&tasks[1]); err != nil {
		t.Fatal(err)
	}
	active := ActiveTasks(tasks)
	if got := ids(active); got != "a" {
		t.Errorf("ActiveTasks = %s, want a", got)
	}
	if len(tasks) != 2 {
		t.Errorf("record set shrank to %d", len(tasks))
	}
}

func TestValidate(t *testing.T) {
	ok := Task{Title: "Fix jig", Type: TypeSimple, Status: StatusTodo, Priority: PriorityLow}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}

	bad := Task{Type: TypeProduction, Status: "open", Priority: "urgent", PlannedQuantity: -1}
	err := bad.Validate()
	if err == nil {
		t.Fatal("Validate(invalid) = nil")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate(invalid) error %v does not wrap ErrInvalid", err)
	}
	for _, want := range []string{"title is required", "invalid status", "invalid priority", "requires an order", "negative"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	d := time.Now()
	orig := Task{ID: "a", AssigneeIDs: []string{"u1"}, Deadline: &d}
	c := orig.Clone()
	c.AssigneeIDs[0] = "u2"
	*c.Deadline = d.Add(time.Hour)
	if orig.AssigneeIDs[0] != "u1" {
		t.Error("Clone shares AssigneeIDs")
	}
	if !orig.Deadline.Equal(d) {
		t.Error("Clone shares Deadline")
	}
}

func TestAssignedTo(t *testing.T) {
	tk := Task{AssigneeIDs: []string{"u1", "u2"}}
	if !tk.AssignedTo("u2") {
		t.Error("AssignedTo(u2) = false")
	}
	if tk.AssignedTo("u3") {
		t.Error("AssignedTo(u3) = true")
	}
}

func ids(tasks []Task) string {
	parts := make([]string, len(tasks))
	for i, t := range tasks {
		parts[i] = t.ID
	}
	return strings.Join(parts, ",")
}
