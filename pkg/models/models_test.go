package models

import "testing"

func TestBarrierValid(t *testing.T) {
	for _, b := range Barriers {
		if !b.Valid() {
			t.Errorf("Barrier %q should be valid", b)
		}
	}

	invalid := []Barrier{"", "tired", "OVERWHELMED", "overwhelmed "}
	for _, b := range invalid {
		if b.Valid() {
			t.Errorf("Barrier %q should be invalid", b)
		}
	}
}

func TestBarrierStrategy(t *testing.T) {
	tests := []struct {
		barrier Barrier
		want    string
	}{
		{BarrierOverwhelmed, "micro_wins"},
		{BarrierUncertain, "structured_exploration"},
		{BarrierBored, "quick_momentum"},
		{BarrierPerfectionism, "good_enough_iterations"},
		{Barrier("bogus"), ""},
	}

	for _, tt := range tests {
		if got := tt.barrier.Strategy(); got != tt.want {
			t.Errorf("Strategy(%q) = %q, want %q", tt.barrier, got, tt.want)
		}
	}
}

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{TaskStatusActive, TaskStatusCompleted, TaskStatusAbandoned}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("TaskStatus %q should be valid", s)
		}
	}
	if TaskStatus("done").Valid() {
		t.Error("TaskStatus \"done\" should be invalid")
	}
}

func TestStepStatusValid(t *testing.T) {
	valid := []StepStatus{StepStatusPending, StepStatusInProgress, StepStatusCompleted}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("StepStatus %q should be valid", s)
		}
	}
	if StepStatus("").Valid() {
		t.Error("empty StepStatus should be invalid")
	}
}

func TestPlanStepByID(t *testing.T) {
	plan := &Plan{
		Steps: []PlanStep{
			{ID: "s1", Title: "First"},
			{ID: "s2", Title: "Second"},
		},
	}

	step := plan.StepByID("s2")
	if step == nil {
		t.Fatal("StepByID(s2) returned nil")
	}
	if step.Title != "Second" {
		t.Errorf("StepByID(s2).Title = %q, want %q", step.Title, "Second")
	}

	if plan.StepByID("s9") != nil {
		t.Error("StepByID(s9) should return nil")
	}
}
