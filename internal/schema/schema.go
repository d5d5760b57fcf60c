// Package schema validates untrusted input and model output against the
// shapes the service persists. Validators normalize (trim) as they check
// and report every violated field rather than stopping at the first;
// re-validating an already-valid value is a no-op.
package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dalefocus/dalefocus/pkg/models"
)

// Bounds shared with the prompt contract. The model is instructed to stay
// inside these; validation enforces them regardless.
const (
	MaxTitleLen           = 200
	MinEstimateMinutes    = 1
	MaxEstimateMinutes    = 120
	MinEstimatedPomodoros = 1
	MaxEstimatedPomodoros = 50
	MaxSessionMinutes     = 240
	MaxRewardContextLen   = 300
	MinMetricsDays        = 1
	MaxMetricsDays        = 30
)

// Issue is one field-level validation failure.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Issues is the full set of failures for one value. A nil or empty Issues
// means the value is valid.
type Issues []Issue

// Error implements the error interface with a compact field list.
func (is Issues) Error() string {
	if len(is) == 0 {
		return "no issues"
	}
	parts := make([]string, len(is))
	for i, issue := range is {
		parts[i] = fmt.Sprintf("%s: %s", issue.Field, issue.Message)
	}
	return strings.Join(parts, "; ")
}

func (is *Issues) add(field, message string) {
	*is = append(*is, Issue{Field: field, Message: message})
}

// AtomizeInput is a validated, normalized atomization request.
type AtomizeInput struct {
	TaskTitle      string
	Barrier        models.Barrier
	ExistingTaskID string
}

// ValidateAtomizeInput checks and normalizes a raw atomization request.
// existingTaskID may be empty; when present it must be a non-empty trimmed
// string (existence and ownership are checked against the store, not here).
func ValidateAtomizeInput(taskTitle, barrier, existingTaskID string) (AtomizeInput, Issues) {
	var issues Issues

	title := strings.TrimSpace(taskTitle)
	if title == "" {
		issues.add("taskTitle", "must not be empty")
	} else if utf8.RuneCountInString(title) > MaxTitleLen {
		issues.add("taskTitle", fmt.Sprintf("must not exceed %d characters", MaxTitleLen))
	}

	b := models.Barrier(strings.TrimSpace(barrier))
	if !b.Valid() {
		issues.add("barrier", fmt.Sprintf("must be one of: %s", barrierList()))
	}

	taskID := strings.TrimSpace(existingTaskID)
	if existingTaskID != "" && taskID == "" {
		issues.add("existingTaskId", "must not be blank when present")
	}

	if len(issues) > 0 {
		return AtomizeInput{}, issues
	}
	return AtomizeInput{TaskTitle: title, Barrier: b, ExistingTaskID: taskID}, nil
}

// ValidatePlan checks a decoded model reply against the plan shape. The
// reply is adversarial until this passes: every field is checked and every
// violation reported.
func ValidatePlan(p *models.Plan) Issues {
	var issues Issues

	if p == nil {
		issues.add("plan", "must be a JSON object")
		return issues
	}

	if strings.TrimSpace(p.TaskTitle) == "" {
		issues.add("taskTitle", "must not be empty")
	}
	if !p.Barrier.Valid() {
		issues.add("barrier", fmt.Sprintf("must be one of: %s", barrierList()))
	}
	if strings.TrimSpace(p.Strategy) == "" {
		issues.add("strategy", "must not be empty")
	}
	if p.EstimatedPomodoros < MinEstimatedPomodoros || p.EstimatedPomodoros > MaxEstimatedPomodoros {
		issues.add("estimatedPomodoros",
			fmt.Sprintf("must be an integer in [%d,%d]", MinEstimatedPomodoros, MaxEstimatedPomodoros))
	}
	if strings.TrimSpace(p.AntiProcrastinationTip) == "" {
		issues.add("antiProcrastinationTip", "must not be empty")
	}

	if len(p.Steps) == 0 {
		issues.add("steps", "must contain at least one step")
	}
	seen := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		validateStep(&p.Steps[i], i, seen, &issues)
	}

	if strings.TrimSpace(p.NextBestActionID) == "" {
		issues.add("nextBestActionId", "must not be empty")
	} else if len(p.Steps) > 0 && p.StepByID(p.NextBestActionID) == nil {
		issues.add("nextBestActionId", "must reference the id of one of steps")
	}

	return issues
}

func validateStep(s *models.PlanStep, i int, seen map[string]bool, issues *Issues) {
	field := func(name string) string { return fmt.Sprintf("steps[%d].%s", i, name) }

	if strings.TrimSpace(s.ID) == "" {
		issues.add(field("id"), "must not be empty")
	} else if seen[s.ID] {
		issues.add(field("id"), "must be unique within the plan")
	} else {
		seen[s.ID] = true
	}

	if strings.TrimSpace(s.Title) == "" {
		issues.add(field("title"), "must not be empty")
	}
	if strings.TrimSpace(s.Action) == "" {
		issues.add(field("action"), "must not be empty")
	}
	if s.EstimateMinutes < MinEstimateMinutes || s.EstimateMinutes > MaxEstimateMinutes {
		issues.add(field("estimateMinutes"),
			fmt.Sprintf("must be an integer in [%d,%d]", MinEstimateMinutes, MaxEstimateMinutes))
	}
	if len(s.AcceptanceCriteria) == 0 {
		issues.add(field("acceptanceCriteria"), "must contain at least one criterion")
	}
	for j, c := range s.AcceptanceCriteria {
		if strings.TrimSpace(c) == "" {
			issues.add(fmt.Sprintf("steps[%d].acceptanceCriteria[%d]", i, j), "must not be empty")
		}
	}
	if s.Order < 1 {
		issues.add(field("order"), "must be an integer >= 1")
	}
}

// SessionInput is a validated, normalized session-completion request.
type SessionInput struct {
	TaskID          string
	StepID          string
	DurationMinutes int
	Completed       bool
}

// ValidateSessionInput checks a raw session-completion request. taskID and
// stepID are optional; blank-after-trim values for present fields are
// rejected rather than silently dropped.
func ValidateSessionInput(taskID, stepID string, taskIDSet, stepIDSet bool, durationMinutes int, completed bool) (SessionInput, Issues) {
	var issues Issues

	in := SessionInput{DurationMinutes: durationMinutes, Completed: completed}

	if taskIDSet {
		in.TaskID = strings.TrimSpace(taskID)
		if in.TaskID == "" {
			issues.add("taskId", "must not be blank when present")
		}
	}
	if stepIDSet {
		in.StepID = strings.TrimSpace(stepID)
		if in.StepID == "" {
			issues.add("stepId", "must not be blank when present")
		}
	}
	if durationMinutes < 1 || durationMinutes > MaxSessionMinutes {
		issues.add("durationMinutes", fmt.Sprintf("must be an integer in [1,%d]", MaxSessionMinutes))
	}

	if len(issues) > 0 {
		return SessionInput{}, issues
	}
	return in, nil
}

// RewardInput is a validated reward-generation request.
type RewardInput struct {
	Personality string
	Context     string
}

// ValidateRewardInput checks a raw reward request. Unknown personalities
// are allowed here; the reward generator falls back to its default tone.
func ValidateRewardInput(personality, context string) (RewardInput, Issues) {
	var issues Issues

	p := strings.TrimSpace(personality)
	if p == "" {
		issues.add("personality", "must not be empty")
	}
	c := strings.TrimSpace(context)
	if c == "" {
		issues.add("context", "must not be empty")
	} else if utf8.RuneCountInString(c) > MaxRewardContextLen {
		issues.add("context", fmt.Sprintf("must not exceed %d characters", MaxRewardContextLen))
	}

	if len(issues) > 0 {
		return RewardInput{}, issues
	}
	return RewardInput{Personality: p, Context: c}, nil
}

// ValidateMetricsDays checks the metrics range, applying the 7-day default
// when the caller omits it (daysSet false).
func ValidateMetricsDays(days int, daysSet bool) (int, Issues) {
	if !daysSet {
		return 7, nil
	}
	if days < MinMetricsDays || days > MaxMetricsDays {
		var issues Issues
		issues.add("days", fmt.Sprintf("must be an integer in [%d,%d]", MinMetricsDays, MaxMetricsDays))
		return 0, issues
	}
	return days, nil
}

func barrierList() string {
	parts := make([]string, len(models.Barriers))
	for i, b := range models.Barriers {
		parts[i] = string(b)
	}
	return strings.Join(parts, ", ")
}
