package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// DefaultAnthropicModel is used when no model is configured
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	// DefaultAnthropicMaxTokens caps the length of an extraction reply
	DefaultAnthropicMaxTokens = 1024
)

// AnthropicProvider completes prompts with the Anthropic Messages API
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicProvider creates a provider for the given API key.
// Extra request options (base URL, retries) are passed to the SDK client.
func NewAnthropicProvider(apiKey string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	// The Extractor owns retries
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	client := anthropic.NewClient(clientOpts...)
	return &AnthropicProvider{
		client:    &client,
		model:     DefaultAnthropicModel,
		maxTokens: DefaultAnthropicMaxTokens,
	}, nil
}

// Name returns the provider identifier
func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// Model returns the model used for completions
func (p *AnthropicProvider) Model() string { return p.model }

// Complete sends one system + user exchange and returns the text reply
func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("anthropic returned empty response")
	}
	return &Completion{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
