// Package reward generates short motivational messages after a user
// completes a step or a session. Messages are best-effort: the operation
// never fails because of the model, it falls back to a canned message.
package reward

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dalefocus/dalefocus/internal/apperr"
	"github.com/dalefocus/dalefocus/internal/llm"
	"github.com/dalefocus/dalefocus/internal/schema"
)

//go:embed personalities.yaml
var catalogYAML []byte

// Personality is one tone entry from the embedded catalog.
type Personality struct {
	Name string `yaml:"name"`
	Tone string `yaml:"tone"`
}

// Catalog holds the personality tones plus the default and the canned
// fallback message.
type Catalog struct {
	Default       string                 `yaml:"default"`
	Fallback      string                 `yaml:"fallback"`
	Personalities map[string]Personality `yaml:"personalities"`
}

// LoadCatalog parses the embedded personality catalog.
func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return nil, fmt.Errorf("parse personality catalog: %w", err)
	}
	if _, ok := c.Personalities[c.Default]; !ok {
		return nil, fmt.Errorf("personality catalog: default %q not in catalog", c.Default)
	}
	return &c, nil
}

// Tone resolves a personality id to its tone description. Unknown ids
// resolve to the default personality.
func (c *Catalog) Tone(id string) string {
	if p, ok := c.Personalities[id]; ok {
		return p.Tone
	}
	return c.Personalities[c.Default].Tone
}

const systemPromptFormat = `You are the motivational assistant of the DaleFocus app. Generate short celebration messages (1-2 sentences max).

TONE: %s

Rules:
- Maximum 2 sentences
- Briefly reference what the user accomplished
- Be positive and energetic
- No hashtags and no emoji overload (1 emoji max)`

// Config holds the generator's model settings.
type Config struct {
	// Model is the completion model for reward calls. A small fast model
	// is enough here.
	Model string
	// Timeout bounds the external call. Rewards are shown inline, so the
	// deadline is much tighter than atomization's.
	Timeout time.Duration
	// Configured reports whether a provider credential is present.
	Configured bool
}

// Generator produces reward messages.
type Generator struct {
	completer llm.Completer
	catalog   *Catalog
	cfg       Config
	logger    *slog.Logger
}

// New creates a Generator with the embedded catalog.
func New(completer llm.Completer, cfg Config, logger *slog.Logger) (*Generator, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, catalog: catalog, cfg: cfg, logger: logger}, nil
}

// Request is one raw reward request as received from a client.
type Request struct {
	Personality string `json:"personality"`
	Context     string `json:"context"`
}

// Result carries the generated message. Fallback reports whether the
// canned message was used instead of a model completion.
type Result struct {
	Message  string `json:"message"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Generate validates the request and asks the model for a celebration
// message. Any model failure degrades to the canned fallback; only
// authentication and validation problems surface as errors.
func (g *Generator) Generate(ctx context.Context, principal string, req Request) (*Result, error) {
	if principal == "" {
		return nil, apperr.New(apperr.Unauthenticated, "you must be signed in")
	}
	in, issues := schema.ValidateRewardInput(req.Personality, req.Context)
	if issues != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, apperr.StageNone, issues.Error(), issues)
	}

	if !g.cfg.Configured {
		return &Result{Message: g.catalog.Fallback, Fallback: true}, nil
	}

	reply, err := llm.CompleteWithDeadline(ctx, g.completer, llm.Request{
		Model:     g.cfg.Model,
		System:    fmt.Sprintf(systemPromptFormat, g.catalog.Tone(in.Personality)),
		User:      fmt.Sprintf("The user just: %s. Generate a celebration message.", in.Context),
		MaxTokens: 200,
	}, g.cfg.Timeout)
	if err != nil {
		g.logger.Warn("reward generation fell back",
			slog.String("error", err.Error()),
		)
		return &Result{Message: g.catalog.Fallback, Fallback: true}, nil
	}

	msg := strings.TrimSpace(reply)
	if msg == "" {
		return &Result{Message: g.catalog.Fallback, Fallback: true}, nil
	}
	return &Result{Message: msg}, nil
}
