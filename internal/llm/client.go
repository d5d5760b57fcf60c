// Package llm wraps the Anthropic completion API behind a bounded,
// cancellable caller. It distinguishes timeout, overload, and credential
// failures so the orchestrators can map each to a different caller-facing
// error; it never retries.
package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/dalefocus/dalefocus/internal/config"
)

// Client is a thin wrapper over the Anthropic SDK client.
type Client struct {
	inner anthropic.Client
}

// NewClient creates an Anthropic API client from configuration. The
// credential is required: an empty key without Bedrock is a configuration
// error the caller should surface as a precondition failure.
func NewClient(cfg config.AnthropicConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key is not configured")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Client{inner: anthropic.NewClient(opts...)}, nil
}

// Complete sends one system+user completion request and returns the
// concatenated text reply. The context carries the deadline; see
// CompleteWithDeadline.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", classify(ctx, err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
