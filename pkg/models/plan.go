package models

// Plan is the structured output produced by the model for one atomization
// request. A Plan is untrusted until it passes schema validation; only
// validated plans reach the store.
type Plan struct {
	// TaskTitle is the title the plan was generated for.
	TaskTitle string `json:"taskTitle"`
	// Barrier is the barrier the plan's rule set was selected by.
	Barrier Barrier `json:"barrier"`
	// Strategy is the rule-set label the model applied (e.g. "micro_wins").
	Strategy string `json:"strategy"`
	// EstimatedPomodoros is the model's whole-task estimate, 1..50.
	EstimatedPomodoros int `json:"estimatedPomodoros"`
	// Steps is the ordered list of atomized steps. Never empty once validated.
	Steps []PlanStep `json:"steps"`
	// NextBestActionID names the step the user should start with.
	// It must equal the ID of one of Steps.
	NextBestActionID string `json:"nextBestActionId"`
	// AntiProcrastinationTip is a short motivational note for the caller.
	AntiProcrastinationTip string `json:"antiProcrastinationTip"`
}

// PlanStep is one unit of a plan as returned by the model. IDs are opaque
// model-assigned labels ("s1", "s2", ...) referenced by NextBestActionID;
// they are replaced by generated ids at persistence time.
type PlanStep struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Action             string   `json:"action"`
	EstimateMinutes    int      `json:"estimateMinutes"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Order              int      `json:"order"`
}

// StepByID returns the plan step with the given id, or nil.
func (p *Plan) StepByID(id string) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}
