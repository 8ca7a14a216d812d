package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	oaoption "github.com/openai/openai-go/option"
)

const (
	// DefaultOpenAIModel is used when no model is configured
	DefaultOpenAIModel = "gpt-4o"

	openAITemperature = 0.1
)

// OpenAIProvider completes prompts with the OpenAI chat completions API
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for the given API key.
// Extra request options (base URL, HTTP client) are passed to the SDK client.
func NewOpenAIProvider(apiKey string, opts ...oaoption.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}
	// The Extractor owns retries
	clientOpts := append([]oaoption.RequestOption{oaoption.WithAPIKey(apiKey), oaoption.WithMaxRetries(0)}, opts...)
	client := openai.NewClient(clientOpts...)
	return &OpenAIProvider{
		client: &client,
		model:  DefaultOpenAIModel,
	}, nil
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Model returns the model used for completions
func (p *OpenAIProvider) Model() string { return p.model }

// Complete sends one system + user exchange and returns the text reply
func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(openAITemperature),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, errors.New("openai returned empty response")
	}
	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
