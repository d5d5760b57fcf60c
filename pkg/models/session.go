package models

import "time"

// FocusSession records one pomodoro-style focus session reported by a
// client. Sessions are append-only; they feed the user metrics.
type FocusSession struct {
	// ID is the generated unique identifier for this session.
	ID string `json:"id"`
	// OwnerID is the principal that ran the session.
	OwnerID string `json:"ownerId"`
	// TaskID references the task worked on, if any.
	TaskID string `json:"taskId,omitempty"`
	// StepID references the step worked on, if any.
	StepID string `json:"stepId,omitempty"`
	// StartAt is the derived session start (EndAt minus duration).
	StartAt time.Time `json:"startAt"`
	// EndAt is when the session was reported.
	EndAt time.Time `json:"endAt"`
	// DurationMinutes is the reported session length, 1..240.
	DurationMinutes int `json:"durationMinutes"`
	// Completed is true when the session ran to its planned end rather
	// than being interrupted.
	Completed bool `json:"completed"`
}
