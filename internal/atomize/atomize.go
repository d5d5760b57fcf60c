// Package atomize implements the task atomization operation: it validates
// input, enforces the per-principal rate limit, invokes the completion
// model under a deadline, validates the untrusted reply, and persists the
// resulting plan. Stages run strictly sequentially; every failure is
// classified once at this boundary and logged with its stage and kind.
package atomize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dalefocus/dalefocus/internal/apperr"
	"github.com/dalefocus/dalefocus/internal/llm"
	"github.com/dalefocus/dalefocus/internal/otel"
	"github.com/dalefocus/dalefocus/internal/plan"
	"github.com/dalefocus/dalefocus/internal/schema"
	"github.com/dalefocus/dalefocus/internal/store"
	"github.com/dalefocus/dalefocus/pkg/models"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTaskWithSteps(ctx context.Context, task *models.Task, steps []*models.Step) error
}

// Admitter is the rate-limit surface the orchestrator needs.
type Admitter interface {
	Allow(ctx context.Context, principal string) error
}

// Config holds the orchestrator's model settings. Constructed once at
// process start from the service configuration.
type Config struct {
	// Model is the completion model for atomization calls.
	Model string
	// Timeout bounds the external call.
	Timeout time.Duration
	// MaxTokens caps the completion size.
	MaxTokens int64
	// Configured reports whether a provider credential is present.
	// When false, calls fail with FailedPrecondition before any model
	// traffic.
	Configured bool
}

// Request is one raw atomization request as received from a client.
type Request struct {
	TaskTitle      string `json:"taskTitle"`
	Barrier        string `json:"barrier"`
	ExistingTaskID string `json:"existingTaskId,omitempty"`
}

// Result is the full validated plan plus the generated task id. The step
// ids in the plan are the model-local labels the plan's nextBestActionId
// references; persisted steps carry their own generated ids.
type Result struct {
	TaskID string `json:"taskId"`
	models.Plan
}

// Orchestrator sequences the atomization pipeline. One instance serves
// all principals; it holds no per-call state.
type Orchestrator struct {
	store     Store
	limiter   Admitter
	completer llm.Completer
	cfg       Config
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// New creates an Orchestrator.
func New(st Store, limiter Admitter, completer llm.Completer, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     st,
		limiter:   limiter,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// SetClock overrides the orchestrator's time source (for testing).
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Atomize runs the full pipeline for one request. On success it returns
// the validated plan plus the generated task id; on failure, exactly one
// classified error. Nothing is retried: every failure is terminal for
// the call.
func (o *Orchestrator) Atomize(ctx context.Context, principal string, req Request) (*Result, error) {
	started := o.now()
	res, err := o.run(ctx, principal, req)
	outcome, stage := "ok", ""
	if err != nil {
		outcome = string(apperr.KindOf(err))
		stage = string(apperr.StageOf(err))
		o.logger.Error("atomize failed",
			slog.String("kind", outcome),
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
	}
	otel.RecordAtomization(ctx, outcome, stage, barrierLabel(req.Barrier), o.now().Sub(started))
	return res, err
}

// barrierLabel collapses unknown barrier values to a single label so a
// caller cannot inflate the metric's attribute cardinality.
func barrierLabel(raw string) string {
	b := models.Barrier(strings.TrimSpace(raw))
	if !b.Valid() {
		return "invalid"
	}
	return string(b)
}

func (o *Orchestrator) run(ctx context.Context, principal string, req Request) (*Result, error) {
	if principal == "" {
		return nil, apperr.New(apperr.Unauthenticated, "you must be signed in")
	}

	// Validating
	in, issues := schema.ValidateAtomizeInput(req.TaskTitle, req.Barrier, req.ExistingTaskID)
	if issues != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, apperr.StageNone, issues.Error(), issues)
	}

	// Preconditions on the referenced task run before the rate-limit
	// check, so a failing precondition consumes no quota.
	if in.ExistingTaskID != "" {
		if err := o.checkExistingTask(ctx, principal, in.ExistingTaskID); err != nil {
			return nil, err
		}
	}

	// RateLimitCheck
	if err := o.limiter.Allow(ctx, principal); err != nil {
		if apperr.KindOf(err) == apperr.ResourceExhausted {
			otel.RecordRateLimitRejection(ctx)
			return nil, err
		}
		return nil, apperr.Wrap(apperr.Internal, apperr.StageUnknown, "rate limit check failed", err)
	}

	// Calling
	if !o.cfg.Configured {
		return nil, apperr.New(apperr.FailedPrecondition, "AI service is not configured")
	}

	callStart := o.now()
	reply, err := llm.CompleteWithDeadline(ctx, o.completer, llm.Request{
		Model:     o.cfg.Model,
		System:    plan.SystemPrompt(),
		User:      plan.BuildUserPrompt(in.TaskTitle, in.Barrier),
		MaxTokens: o.cfg.MaxTokens,
	}, o.cfg.Timeout)
	if err != nil {
		classified := classifyModelError(err)
		otel.RecordModelCall(ctx, string(apperr.KindOf(classified)), o.now().Sub(callStart))
		return nil, classified
	}
	otel.RecordModelCall(ctx, "ok", o.now().Sub(callStart))

	// Parsing + SchemaValidating
	p, err := plan.Parse(reply)
	if err != nil {
		var schemaErr *plan.SchemaError
		switch {
		case errors.As(err, &schemaErr):
			return nil, apperr.Wrap(apperr.Internal, apperr.StageAISchema,
				"the AI returned an invalid plan, try again", err)
		case errors.Is(err, plan.ErrMalformed):
			return nil, apperr.Wrap(apperr.Internal, apperr.StageParse,
				"failed to interpret the AI response", err)
		default:
			return nil, apperr.Wrap(apperr.Internal, apperr.StageParse,
				"failed to interpret the AI response", err)
		}
	}

	// Persisting
	taskID, err := o.persist(ctx, principal, p)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, apperr.StagePersist,
			"failed to save the plan", err)
	}

	return &Result{TaskID: taskID, Plan: *p}, nil
}

// checkExistingTask enforces the existingTaskId preconditions: the task
// must exist, belong to the caller, and not already be completed.
func (o *Orchestrator) checkExistingTask(ctx context.Context, principal, taskID string) error {
	task, err := o.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.InvalidArgument, "existingTaskId does not reference a task")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, apperr.StagePersist, "failed to load task", err)
	}
	if task.OwnerID != principal {
		return apperr.New(apperr.PermissionDenied, "you do not have access to this task")
	}
	if task.Status == models.TaskStatusCompleted {
		return apperr.New(apperr.FailedPrecondition, "the task is already completed")
	}
	return nil
}

// persist writes the validated plan as one task and its steps. The store
// commits both in a single transaction, so a step can never reference a
// missing task.
func (o *Orchestrator) persist(ctx context.Context, principal string, p *models.Plan) (string, error) {
	now := o.now()
	task := &models.Task{
		ID:                 o.newID(),
		OwnerID:            principal,
		Title:              p.TaskTitle,
		Barrier:            p.Barrier,
		Strategy:           p.Strategy,
		EstimatedPomodoros: p.EstimatedPomodoros,
		Status:             models.TaskStatusActive,
		CreatedAt:          now,
	}

	steps := make([]*models.Step, len(p.Steps))
	for i, ps := range p.Steps {
		steps[i] = &models.Step{
			ID:                 o.newID(),
			TaskID:             task.ID,
			Title:              ps.Title,
			Action:             ps.Action,
			EstimateMinutes:    ps.EstimateMinutes,
			AcceptanceCriteria: ps.AcceptanceCriteria,
			Order:              ps.Order,
			Status:             models.StepStatusPending,
		}
	}

	if err := o.store.CreateTaskWithSteps(ctx, task, steps); err != nil {
		return "", fmt.Errorf("create task with steps: %w", err)
	}
	return task.ID, nil
}

// classifyModelError maps the bounded caller's failure classes onto the
// caller-facing taxonomy.
func classifyModelError(err error) error {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return apperr.Wrap(apperr.DeadlineExceeded, apperr.StageNone,
			"the request took too long to answer", err)
	case errors.Is(err, llm.ErrOverloaded):
		return apperr.Wrap(apperr.ResourceExhausted, apperr.StageNone,
			"high demand, try again in a moment", err)
	case errors.Is(err, llm.ErrAuth):
		return apperr.Wrap(apperr.FailedPrecondition, apperr.StageNone,
			"AI service is not configured correctly", err)
	default:
		return apperr.Wrap(apperr.Internal, apperr.StageUnknown,
			"the AI call failed", err)
	}
}
