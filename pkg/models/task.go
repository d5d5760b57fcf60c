package models

import "time"

// TaskStatus represents the current state of a persisted task.
type TaskStatus string

const (
	// TaskStatusActive indicates the task has steps left to work on.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusCompleted indicates every step is done.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusAbandoned indicates the user gave up on the task.
	TaskStatusAbandoned TaskStatus = "abandoned"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusActive, TaskStatusCompleted, TaskStatusAbandoned:
		return true
	default:
		return false
	}
}

// StepStatus represents the current state of a persisted step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusCompleted:
		return true
	default:
		return false
	}
}

// Task is a persisted atomized task. Created exactly once per successful
// atomization; status transitions are driven by session completion.
type Task struct {
	// ID is the generated unique identifier for this task.
	ID string `json:"id"`
	// OwnerID is the principal that created the task.
	OwnerID string `json:"ownerId"`
	// Title is the trimmed task title.
	Title string `json:"title"`
	// Barrier is the barrier the task was atomized under.
	Barrier Barrier `json:"barrier"`
	// Strategy is the rule-set label the plan applied.
	Strategy string `json:"strategy"`
	// EstimatedPomodoros is the whole-task pomodoro estimate.
	EstimatedPomodoros int `json:"estimatedPomodoros"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"createdAt"`
	// FirstSessionAt is when the first focus session touched this task,
	// if any. Feeds the time-to-action metric.
	FirstSessionAt *time.Time `json:"firstSessionAt,omitempty"`
	// CompletedAt is when the task was completed, if applicable.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Step is a persisted plan step. A step never exists without exactly one
// owning task; TaskID is immutable after creation.
type Step struct {
	// ID is the generated unique identifier for this step.
	ID string `json:"id"`
	// TaskID references the owning task.
	TaskID string `json:"taskId"`
	// Title is the short step description.
	Title string `json:"title"`
	// Action is the concrete instruction for the step.
	Action string `json:"action"`
	// EstimateMinutes is the step duration estimate, 1..120.
	EstimateMinutes int `json:"estimateMinutes"`
	// AcceptanceCriteria lists what makes the step done. Never empty.
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	// Order defines display and execution sequence, starting at 1.
	Order int `json:"order"`
	// Status is the current state of the step.
	Status StepStatus `json:"status"`
	// CompletedAt is when the step was completed, if applicable.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
