// Package ai extracts structured bug reports from chat conversations using LLM providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/mudlet/bugbot/internal/cost"
	"github.com/mudlet/bugbot/internal/types"
)

// Provider names accepted by LLM_PROVIDER
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrNoProviders is returned when no LLM provider has credentials
var ErrNoProviders = errors.New("no LLM providers configured")

// Completion is a provider reply and the tokens it consumed
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Provider completes a single system + user prompt exchange
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (*Completion, error)
}

// Budget gates LLM calls on spend; *cost.Tracker implements it
type Budget interface {
	CanProceed() error
	RecordUsage(provider string, inputTokens, outputTokens int64) cost.BudgetStatus
}

// Config holds extractor configuration
type Config struct {
	Primary      string      // Provider tried first (default: openai)
	OpenAIKey    string      // Enables the OpenAI provider when set
	AnthropicKey string      // Enables the Anthropic provider when set
	Retry        RetryConfig // Uses DefaultRetryConfig when zero
	Budget       Budget      // nil disables budgeting
	Logger       *slog.Logger
}

// Extractor turns conversations into bug report extractions, failing over
// between providers. Each provider has its own circuit breaker.
type Extractor struct {
	providers      []Provider
	retry          RetryConfig
	breakers       map[string]*CircuitBreaker
	concurrencySem *semaphore.Weighted
	budget         Budget
	log            *slog.Logger
}

// NewExtractor builds an extractor from API keys.
// Providers without a key are skipped; Extract reports ErrNoProviders if none remain.
func NewExtractor(cfg *Config) (*Extractor, error) {
	var available []Provider
	if cfg.OpenAIKey != "" {
		p, err := NewOpenAIProvider(cfg.OpenAIKey)
		if err != nil {
			return nil, err
		}
		available = append(available, p)
	}
	if cfg.AnthropicKey != "" {
		p, err := NewAnthropicProvider(cfg.AnthropicKey)
		if err != nil {
			return nil, err
		}
		available = append(available, p)
	}
	e := NewExtractorWithProviders(OrderProviders(cfg.Primary, available), cfg.Retry, cfg.Logger)
	e.SetBudget(cfg.Budget)
	return e, nil
}

// SetBudget attaches a spend budget; nil removes it
func (e *Extractor) SetBudget(b Budget) {
	e.budget = b
}

// NewExtractorWithProviders builds an extractor that tries providers in the given order
func NewExtractorWithProviders(providers []Provider, retry RetryConfig, log *slog.Logger) *Extractor {
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	breakers := make(map[string]*CircuitBreaker, len(providers))
	if retry.CircuitBreakerEnabled {
		for _, p := range providers {
			breakers[p.Name()] = NewCircuitBreaker(p.Name(), retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout, log)
		}
	}

	var sem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	return &Extractor{
		providers:      providers,
		retry:          retry,
		breakers:       breakers,
		concurrencySem: sem,
		log:            log,
	}
}

// OrderProviders puts the primary provider first and keeps the rest in order
func OrderProviders(primary string, available []Provider) []Provider {
	primary = strings.ToLower(strings.TrimSpace(primary))
	if primary == "" {
		primary = ProviderOpenAI
	}
	ordered := make([]Provider, 0, len(available))
	for _, p := range available {
		if p.Name() == primary {
			ordered = append(ordered, p)
		}
	}
	for _, p := range available {
		if p.Name() != primary {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// Providers returns provider names in the order they are tried
func (e *Extractor) Providers() []string {
	names := make([]string, len(e.providers))
	for i, p := range e.providers {
		names[i] = p.Name()
	}
	return names
}

// CircuitStates reports the breaker state of each provider
func (e *Extractor) CircuitStates() map[string]CircuitState {
	states := make(map[string]CircuitState, len(e.breakers))
	for name, cb := range e.breakers {
		states[name] = cb.GetState()
	}
	return states
}

// HealthCheck fails when there are no providers or every provider's circuit is open
func (e *Extractor) HealthCheck(ctx context.Context) error {
	if len(e.providers) == 0 {
		return ErrNoProviders
	}
	if len(e.breakers) == 0 {
		return nil
	}
	for _, p := range e.providers {
		cb, ok := e.breakers[p.Name()]
		if !ok || cb.GetState() != CircuitOpen {
			return nil
		}
	}
	return fmt.Errorf("all LLM providers unavailable: %w", ErrCircuitOpen)
}

// Extract asks each provider in turn for a bug report extraction.
// A provider that errors after retries or returns an unusable reply is skipped.
func (e *Extractor) Extract(ctx context.Context, messages []types.Message) (*types.Extraction, error) {
	if len(e.providers) == 0 {
		return nil, ErrNoProviders
	}

	if e.concurrencySem != nil {
		if err := e.concurrencySem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire LLM slot: %w", err)
		}
		defer e.concurrencySem.Release(1)
	}

	if e.budget != nil {
		if err := e.budget.CanProceed(); err != nil {
			e.log.Warn("skipping extraction", "error", err)
			return nil, err
		}
	}

	prompt := FormatConversation(messages)

	var lastErr error
	for _, p := range e.providers {
		e.log.Info("attempting extraction", "provider", p.Name(), "messages", len(messages))

		var reply string
		err := retryWithBackoff(ctx, e.retry, e.breakers[p.Name()], e.log, p.Name()+" extraction", func(ctx context.Context) error {
			c, err := p.Complete(ctx, SystemPrompt, prompt)
			if err != nil {
				return err
			}
			if e.budget != nil {
				e.budget.RecordUsage(p.Name(), c.InputTokens, c.OutputTokens)
			}
			reply = c.Text
			return nil
		})
		if err == nil {
			var ext *types.Extraction
			ext, err = ParseExtraction(reply)
			if err == nil {
				e.log.Info("extracted bug report", "provider", p.Name(), "confidence", ext.Confidence)
				return ext, nil
			}
			e.log.Debug("unusable provider reply", "provider", p.Name(), "reply", truncate(reply, 200))
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("extraction canceled: %w", ctx.Err())
		}
		e.log.Warn("provider failed, trying next provider", "provider", p.Name(), "error", err)
	}

	return nil, fmt.Errorf("all LLM providers failed, last error: %w", lastErr)
}
