package plan

import (
	"errors"
	"strings"
	"testing"

	"github.com/dalefocus/dalefocus/pkg/models"
)

const validReply = `{
	"taskTitle": "Write report",
	"barrier": "overwhelmed",
	"strategy": "micro_wins",
	"estimatedPomodoros": 3,
	"steps": [
		{
			"id": "s1",
			"title": "Open the document",
			"action": "Open report.docx and read the brief",
			"estimateMinutes": 3,
			"acceptanceCriteria": ["document is open"],
			"order": 1
		},
		{
			"id": "s2",
			"title": "Outline sections",
			"action": "Write three section headings",
			"estimateMinutes": 10,
			"acceptanceCriteria": ["three headings written"],
			"order": 2
		}
	],
	"nextBestActionId": "s1",
	"antiProcrastinationTip": "Just open the file. Three minutes."
}`

func TestParse_Valid(t *testing.T) {
	p, err := Parse(validReply)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.TaskTitle != "Write report" {
		t.Errorf("TaskTitle = %q", p.TaskTitle)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(p.Steps))
	}
	if p.NextBestActionID != "s1" {
		t.Errorf("NextBestActionID = %q", p.NextBestActionID)
	}
	if p.StepByID(p.NextBestActionID) == nil {
		t.Error("NextBestActionID must reference a step")
	}
}

func TestParse_FencedReply(t *testing.T) {
	fenced := "```json\n" + validReply + "\n```"
	if _, err := Parse(fenced); err != nil {
		t.Fatalf("Parse of fenced reply failed: %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "Sure! Here is a plan for you."},
		{"empty", ""},
		{"truncated object", `{"taskTitle": "Wri`},
		{"array", `[{"id": "s1"}]`},
		{"number", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing steps", `{"taskTitle":"x","barrier":"bored","strategy":"quick_momentum","estimatedPomodoros":1,"nextBestActionId":"s1","antiProcrastinationTip":"go"}`},
		{"zero estimate", strings.Replace(validReply, `"estimateMinutes": 3`, `"estimateMinutes": 0`, 1)},
		{"unknown field", strings.Replace(validReply, `"taskTitle"`, `"surprise": 1, "taskTitle"`, 1)},
		{"wrong type", strings.Replace(validReply, `"estimatedPomodoros": 3`, `"estimatedPomodoros": "three"`, 1)},
		{"dangling next action", strings.Replace(validReply, `"nextBestActionId": "s1"`, `"nextBestActionId": "s99"`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("err = %v, want *SchemaError", err)
			}
			if len(schemaErr.Issues) == 0 {
				t.Error("SchemaError should carry issues")
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := BuildUserPrompt("Write report", models.BarrierOverwhelmed)
	if !strings.Contains(prompt, "Write report") {
		t.Error("prompt should contain the task title")
	}
	if !strings.Contains(prompt, "overwhelmed") {
		t.Error("prompt should contain the barrier")
	}
}

func TestSystemPrompt_CoversAllBarriers(t *testing.T) {
	sys := SystemPrompt()
	for _, b := range models.Barriers {
		if !strings.Contains(sys, string(b)) {
			t.Errorf("system prompt missing rules for barrier %q", b)
		}
		if !strings.Contains(sys, b.Strategy()) {
			t.Errorf("system prompt missing strategy label %q", b.Strategy())
		}
	}
}
