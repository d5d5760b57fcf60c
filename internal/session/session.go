// Package session records completed focus sessions and applies their
// side effects: marking the worked step completed and stamping the owning
// task's first-session time.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dalefocus/dalefocus/internal/apperr"
	"github.com/dalefocus/dalefocus/internal/otel"
	"github.com/dalefocus/dalefocus/internal/schema"
	"github.com/dalefocus/dalefocus/internal/store"
	"github.com/dalefocus/dalefocus/pkg/models"
)

// Store is the persistence surface the recorder needs.
type Store interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetStep(ctx context.Context, id string) (*models.Step, error)
	CreateSession(ctx context.Context, s *models.FocusSession) error
	CompleteStep(ctx context.Context, stepID string, at time.Time) error
	SetFirstSessionAt(ctx context.Context, taskID string, at time.Time) error
}

// Request is one raw session-completion report as received from a client.
// TaskID and StepID are optional; the Set flags distinguish absent fields
// from blank ones.
type Request struct {
	TaskID          string
	TaskIDSet       bool
	StepID          string
	StepIDSet       bool
	DurationMinutes int
	Completed       bool
}

// Result is the acknowledgment returned to the client.
type Result struct {
	SessionID     string `json:"sessionId"`
	StepCompleted bool   `json:"stepCompleted"`
}

// Recorder applies session-completion reports.
type Recorder struct {
	store  Store
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Recorder.
func New(st Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  st,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// SetClock overrides the recorder's time source (for testing).
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// Complete validates and records one session. When the session completed
// a referenced step, the step is marked completed and the owning task's
// first-session time is set if this was the first session against it.
func (r *Recorder) Complete(ctx context.Context, principal string, req Request) (*Result, error) {
	res, err := r.run(ctx, principal, req)
	if err != nil {
		r.logger.Error("session completion failed",
			slog.String("kind", string(apperr.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	otel.RecordSession(ctx, req.Completed)
	return res, nil
}

func (r *Recorder) run(ctx context.Context, principal string, req Request) (*Result, error) {
	if principal == "" {
		return nil, apperr.New(apperr.Unauthenticated, "you must be signed in")
	}

	in, issues := schema.ValidateSessionInput(
		req.TaskID, req.StepID, req.TaskIDSet, req.StepIDSet,
		req.DurationMinutes, req.Completed,
	)
	if issues != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, apperr.StageNone, issues.Error(), issues)
	}

	var task *models.Task
	if in.TaskID != "" {
		var err error
		task, err = r.loadOwnedTask(ctx, principal, in.TaskID)
		if err != nil {
			return nil, err
		}
		if task.Status == models.TaskStatusCompleted && in.Completed {
			return nil, apperr.New(apperr.FailedPrecondition, "the task is already completed")
		}
	}

	var step *models.Step
	if in.StepID != "" {
		var err error
		step, err = r.store.GetStep(ctx, in.StepID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.InvalidArgument, "stepId does not reference a step")
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, apperr.StagePersist, "failed to load step", err)
		}
		// A step may only be reported together with its own task; a bare
		// stepId resolves the task through the step.
		if task != nil && step.TaskID != task.ID {
			return nil, apperr.New(apperr.InvalidArgument, "stepId does not belong to taskId")
		}
		if task == nil {
			task, err = r.loadOwnedTask(ctx, principal, step.TaskID)
			if err != nil {
				return nil, err
			}
		}
	}

	now := r.now()
	sess := &models.FocusSession{
		ID:              r.newID(),
		OwnerID:         principal,
		DurationMinutes: in.DurationMinutes,
		Completed:       in.Completed,
		StartAt:         now.Add(-time.Duration(in.DurationMinutes) * time.Minute),
		EndAt:           now,
	}
	if task != nil {
		sess.TaskID = task.ID
	}
	if step != nil {
		sess.StepID = step.ID
	}

	if err := r.store.CreateSession(ctx, sess); err != nil {
		return nil, apperr.Wrap(apperr.Internal, apperr.StagePersist, "failed to save the session", err)
	}

	stepCompleted := false
	if in.Completed && step != nil && step.Status != models.StepStatusCompleted {
		if err := r.store.CompleteStep(ctx, step.ID, now); err != nil {
			return nil, apperr.Wrap(apperr.Internal, apperr.StagePersist, "failed to complete the step", err)
		}
		stepCompleted = true
	}
	if task != nil {
		if err := r.store.SetFirstSessionAt(ctx, task.ID, now); err != nil {
			return nil, apperr.Wrap(apperr.Internal, apperr.StagePersist, "failed to stamp the task", err)
		}
	}

	return &Result{SessionID: sess.ID, StepCompleted: stepCompleted}, nil
}

func (r *Recorder) loadOwnedTask(ctx context.Context, principal, taskID string) (*models.Task, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.InvalidArgument, "taskId does not reference a task")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, apperr.StagePersist, "failed to load task", err)
	}
	if task.OwnerID != principal {
		return nil, apperr.New(apperr.PermissionDenied, "you do not have access to this task")
	}
	return task, nil
}
