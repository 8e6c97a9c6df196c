package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/task"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"PO-2291 - Deburring and wash", 12, "PO-2291 -..."},
		{"abcdef", 3, "abc"},
		{"żółć gęślą", 6, "żół..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestParseDeadline(t *testing.T) {
	d, err := parseDeadline("")
	if err != nil || d != nil {
		t.Errorf("parseDeadline(\"\") = %v, %v; want nil, nil", d, err)
	}

	d, err = parseDeadline("2026-05-04")
	if err != nil {
		t.Fatalf("parseDeadline(date): %v", err)
	}
	want := time.Date(2026, 5, 4, 23, 59, 59, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("parseDeadline(date) = %v, want %v", d, want)
	}

	d, err = parseDeadline("2026-05-04T10:30:00Z")
	if err != nil {
		t.Fatalf("parseDeadline(rfc3339): %v", err)
	}
	if !d.Equal(time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("parseDeadline(rfc3339) = %v", d)
	}

	if _, err := parseDeadline("next friday"); err == nil {
		t.Error("parseDeadline(garbage) = nil error")
	}
}

func TestParseStageFlag(t *testing.T) {
	tests := []struct {
		in      string
		wantID  string
		want    production.StageInput
		wantErr bool
	}{
		{"stg-1=usr-a", "stg-1", production.StageInput{AssigneeIDs: []string{"usr-a"}}, false},
		{"stg-1=usr-a, usr-b:120", "stg-1", production.StageInput{Quantity: 120, AssigneeIDs: []string{"usr-a", "usr-b"}}, false},
		{"stg-2=", "stg-2", production.StageInput{}, false},
		{"stg-2=:40", "stg-2", production.StageInput{Quantity: 40}, false},
		{"stg-3", "", production.StageInput{}, true},
		{"=usr-a", "", production.StageInput{}, true},
		{"stg-1=usr-a:many", "", production.StageInput{}, true},
		{"stg-1=usr-a:-5", "", production.StageInput{}, true},
	}
	for _, tt := range tests {
		id, in, err := parseStageFlag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseStageFlag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if id != tt.wantID || !reflect.DeepEqual(in, tt.want) {
			t.Errorf("parseStageFlag(%q) = %q, %+v; want %q, %+v", tt.in, id, in, tt.wantID, tt.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	if got := formatProgress(task.Task{Title: "Sweep"}); got != "-" {
		t.Errorf("simple task progress = %q, want -", got)
	}
	pt := task.Task{Type: task.TypeProduction, PlannedQuantity: 200, CompletedQuantity: 50, PendingQuantity: 10}
	if got, want := formatProgress(pt), "50/200 (25%) +10 pending"; got != want {
		t.Errorf("formatProgress = %q, want %q", got, want)
	}
	pt.PendingQuantity = 0
	if got, want := formatProgress(pt), "50/200 (25%)"; got != want {
		t.Errorf("formatProgress = %q, want %q", got, want)
	}
}

func TestFormatAssignees(t *testing.T) {
	if got := formatAssignees(nil); got != "-" {
		t.Errorf("formatAssignees(nil) = %q", got)
	}
	if got := formatAssignees([]string{"a", "b"}); got != "a,b" {
		t.Errorf("formatAssignees = %q", got)
	}
}
