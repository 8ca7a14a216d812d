// Package cost tracks LLM token usage against an hourly budget so a busy
// channel cannot run up an unbounded bill.
package cost

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mudlet/bugbot/internal/logging"
)

// ErrBudgetExceeded is returned when the current window's budget is spent
var ErrBudgetExceeded = errors.New("LLM budget exceeded")

// BudgetStatus represents the current budget state
type BudgetStatus int

const (
	// BudgetHealthy indicates usage is under the alert threshold
	BudgetHealthy BudgetStatus = iota
	// BudgetWarning indicates usage is past the alert threshold
	BudgetWarning
	// BudgetExceeded indicates a limit has been reached
	BudgetExceeded
)

// String returns a human-readable string representation of the budget status
func (s BudgetStatus) String() string {
	switch s {
	case BudgetHealthy:
		return "HEALTHY"
	case BudgetWarning:
		return "WARNING"
	case BudgetExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// State is the persisted usage record
type State struct {
	HourlyTokensUsed int64     `json:"hourly_tokens_used"`
	HourlyCostUsed   float64   `json:"hourly_cost_used"`
	WindowStartTime  time.Time `json:"window_start_time"`

	// Provider name -> all-time tokens
	ProviderTokensUsed map[string]int64 `json:"provider_tokens_used"`

	TotalTokensUsed int64     `json:"total_tokens_used"`
	TotalCostUsed   float64   `json:"total_cost_used"`
	Calls           int64     `json:"calls"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Stats is a snapshot of the tracker
type Stats struct {
	State
	Status BudgetStatus `json:"status"`
	Config Config       `json:"config"`
}

// Tracker records LLM usage and enforces the hourly limits.
// It is safe for concurrent use.
type Tracker struct {
	config *Config
	log    *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	warningLogged bool
}

// NewTracker creates a tracker, restoring persisted state when present.
// A corrupt state file is logged and replaced.
func NewTracker(cfg *Config, log *slog.Logger) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logging.New("cost")
	}

	t := &Tracker{config: cfg, log: log, now: time.Now}
	t.state = State{
		WindowStartTime:    t.now(),
		ProviderTokensUsed: make(map[string]int64),
		LastUpdated:        t.now(),
	}

	if err := t.loadState(); err != nil {
		log.Warn("failed to load cost state, starting fresh", "path", cfg.PersistStatePath, "error", err)
	}

	t.mu.Lock()
	t.checkAndResetWindow()
	t.mu.Unlock()
	return t, nil
}

// RecordUsage adds one call's tokens and returns the resulting status
func (t *Tracker) RecordUsage(provider string, inputTokens, outputTokens int64) BudgetStatus {
	if !t.config.Enabled {
		return BudgetHealthy
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkAndResetWindow()

	total := inputTokens + outputTokens
	cost := t.calculateCost(inputTokens, outputTokens)
	t.state.HourlyTokensUsed += total
	t.state.HourlyCostUsed += cost
	t.state.TotalTokensUsed += total
	t.state.TotalCostUsed += cost
	t.state.Calls++
	t.state.ProviderTokensUsed[provider] += total
	t.state.LastUpdated = t.now()

	if err := t.persistState(); err != nil {
		t.log.Warn("failed to persist cost state", "error", err)
	}

	status := t.statusLocked()
	t.log.Debug("recorded LLM usage",
		"provider", provider,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"cost_usd", cost,
		"status", status.String())

	switch status {
	case BudgetExceeded:
		t.log.Error("LLM budget exceeded",
			"hourly_tokens", t.state.HourlyTokensUsed,
			"hourly_cost_usd", t.state.HourlyCostUsed,
			"window_resets_at", t.state.WindowStartTime.Add(t.config.ResetInterval))
	case BudgetWarning:
		if !t.warningLogged {
			t.warningLogged = true
			t.log.Warn("LLM budget nearly spent",
				"hourly_tokens", t.state.HourlyTokensUsed,
				"hourly_cost_usd", t.state.HourlyCostUsed)
		}
	}
	return status
}

// CheckBudget returns the current status without recording usage
func (t *Tracker) CheckBudget() BudgetStatus {
	if !t.config.Enabled {
		return BudgetHealthy
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkAndResetWindow()
	return t.statusLocked()
}

// CanProceed returns nil if another LLM call fits the budget, otherwise an
// error wrapping ErrBudgetExceeded that names the spent limit
func (t *Tracker) CanProceed() error {
	if !t.config.Enabled {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkAndResetWindow()

	resets := t.state.WindowStartTime.Add(t.config.ResetInterval).Format(time.Kitchen)
	if t.tokenLimitReached() {
		return fmt.Errorf("%w: %d/%d tokens used this window (resets %s)",
			ErrBudgetExceeded, t.state.HourlyTokensUsed, t.config.MaxTokensPerHour, resets)
	}
	if t.costLimitReached() {
		return fmt.Errorf("%w: $%.2f/$%.2f spent this window (resets %s)",
			ErrBudgetExceeded, t.state.HourlyCostUsed, t.config.MaxCostPerHour, resets)
	}
	return nil
}

// Stats returns a copy of the current usage
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkAndResetWindow()

	state := t.state
	state.ProviderTokensUsed = make(map[string]int64, len(t.state.ProviderTokensUsed))
	for k, v := range t.state.ProviderTokensUsed {
		state.ProviderTokensUsed[k] = v
	}
	return Stats{State: state, Status: t.statusLocked(), Config: *t.config}
}

// statusLocked must be called with mu held
func (t *Tracker) statusLocked() BudgetStatus {
	if t.tokenLimitReached() || t.costLimitReached() {
		return BudgetExceeded
	}
	if t.config.MaxTokensPerHour > 0 &&
		float64(t.state.HourlyTokensUsed)/float64(t.config.MaxTokensPerHour) >= t.config.AlertThreshold {
		return BudgetWarning
	}
	if t.config.MaxCostPerHour > 0 && t.state.HourlyCostUsed/t.config.MaxCostPerHour >= t.config.AlertThreshold {
		return BudgetWarning
	}
	return BudgetHealthy
}

func (t *Tracker) tokenLimitReached() bool {
	return t.config.MaxTokensPerHour > 0 && t.state.HourlyTokensUsed >= t.config.MaxTokensPerHour
}

func (t *Tracker) costLimitReached() bool {
	return t.config.MaxCostPerHour > 0 && t.state.HourlyCostUsed >= t.config.MaxCostPerHour
}

func (t *Tracker) calculateCost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)*t.config.InputTokenCost/1_000_000 +
		float64(outputTokens)*t.config.OutputTokenCost/1_000_000
}

// checkAndResetWindow starts a new window once the current one has elapsed.
// Must be called with mu held.
func (t *Tracker) checkAndResetWindow() {
	now := t.now()
	if now.Sub(t.state.WindowStartTime) < t.config.ResetInterval {
		return
	}
	t.state.HourlyTokensUsed = 0
	t.state.HourlyCostUsed = 0
	t.state.WindowStartTime = now
	t.warningLogged = false
}

// persistState writes the state atomically. Must be called with mu held.
func (t *Tracker) persistState() error {
	path := t.config.PersistStatePath
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (t *Tracker) loadState() error {
	state, err := ReadState(t.config.PersistStatePath)
	if err != nil || state == nil {
		return err
	}
	t.state = *state
	return nil
}

// ReadState loads a persisted state file. A missing file or empty path
// returns nil without error.
func ReadState(path string) (*State, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.ProviderTokensUsed == nil {
		state.ProviderTokensUsed = make(map[string]int64)
	}
	return &state, nil
}
