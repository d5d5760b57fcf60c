// Package plan constructs the instruction payload for the completion
// model and parses its structured reply. The reply is untrusted: it is
// probed for shape before decoding and schema-validated after, with the
// two failure modes kept distinct so the orchestrator can tag them.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dalefocus/dalefocus/internal/schema"
	"github.com/dalefocus/dalefocus/pkg/models"
)

// ErrMalformed means the reply could not be interpreted as a single JSON
// object at all. Distinct from SchemaError: no repair or re-prompting is
// attempted for either.
var ErrMalformed = errors.New("model reply is not a JSON object")

// SchemaError means the reply parsed as an object but violates the plan
// shape. Issues lists every violated field.
type SchemaError struct {
	Issues schema.Issues
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("model reply fails plan schema: %s", e.Issues.Error())
}

// Parse interprets a raw model reply as a validated Plan. Markdown code
// fences around the object are tolerated (models add them despite
// instructions); anything else non-JSON is not.
func Parse(raw string) (*models.Plan, error) {
	text := stripFences(strings.TrimSpace(raw))

	if !gjson.Valid(text) || !gjson.Parse(text).IsObject() {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, preview(raw))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var p models.Plan
	if err := dec.Decode(&p); err != nil {
		// The reply is a JSON object but not plan-shaped (wrong types,
		// unknown fields). That is a schema violation, not a parse one.
		return nil, &SchemaError{Issues: schema.Issues{{
			Field:   "plan",
			Message: err.Error(),
		}}}
	}

	if issues := schema.ValidatePlan(&p); len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}

	return &p, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// preview truncates a reply for error messages.
func preview(s string) string {
	const max = 200
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "... (truncated)"
	}
	return s
}
