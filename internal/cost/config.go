package cost

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds LLM budget configuration
type Config struct {
	// Enabled controls whether budgeting is active
	// Default: true
	Enabled bool `json:"enabled"`

	// MaxTokensPerHour caps input + output tokens per window; 0 = unlimited
	// Default: 200000 (roughly a hundred extractions)
	MaxTokensPerHour int64 `json:"max_tokens_per_hour"`

	// MaxCostPerHour caps spend in USD per window; 0 = unlimited
	// Default: 2.00
	MaxCostPerHour float64 `json:"max_cost_per_hour"`

	// AlertThreshold is the fraction of either limit that logs a warning
	// Default: 0.80
	AlertThreshold float64 `json:"alert_threshold"`

	// ResetInterval is the length of the budget window
	// Default: 1 hour
	ResetInterval time.Duration `json:"reset_interval"`

	// PersistStatePath keeps usage across restarts; empty disables persistence
	// Default: .bugbot/cost_state.json
	PersistStatePath string `json:"persist_state_path"`

	// InputTokenCost and OutputTokenCost are USD per 1M tokens. The defaults
	// use the higher of the two providers' list prices.
	InputTokenCost  float64 `json:"input_token_cost"`
	OutputTokenCost float64 `json:"output_token_cost"`
}

// DefaultConfig returns the default budget configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		MaxTokensPerHour: 200000,
		MaxCostPerHour:   2.00,
		AlertThreshold:   0.80,
		ResetInterval:    time.Hour,
		PersistStatePath: ".bugbot/cost_state.json",
		InputTokenCost:   3.00,
		OutputTokenCost:  15.00,
	}
}

// LoadFromEnv overrides the defaults with BUGBOT_COST_* variables.
// Malformed values are reported rather than silently ignored.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("BUGBOT_COST_ENABLED"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("invalid BUGBOT_COST_ENABLED %q: %w", val, err)
		}
		cfg.Enabled = b
	}
	if val := os.Getenv("BUGBOT_COST_MAX_TOKENS_PER_HOUR"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid BUGBOT_COST_MAX_TOKENS_PER_HOUR %q: %w", val, err)
		}
		cfg.MaxTokensPerHour = n
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"BUGBOT_COST_MAX_COST_PER_HOUR", &cfg.MaxCostPerHour},
		{"BUGBOT_COST_ALERT_THRESHOLD", &cfg.AlertThreshold},
		{"BUGBOT_COST_INPUT_TOKEN_COST", &cfg.InputTokenCost},
		{"BUGBOT_COST_OUTPUT_TOKEN_COST", &cfg.OutputTokenCost},
	}
	for _, f := range floats {
		val := os.Getenv(f.key)
		if val == "" {
			continue
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.key, val, err)
		}
		*f.dst = v
	}
	if val := os.Getenv("BUGBOT_COST_RESET_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid BUGBOT_COST_RESET_INTERVAL %q: %w", val, err)
		}
		cfg.ResetInterval = d
	}
	if val, ok := os.LookupEnv("BUGBOT_COST_STATE_PATH"); ok {
		cfg.PersistStatePath = val
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cost config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration has safe and reasonable values
func (c *Config) Validate() error {
	if c.MaxTokensPerHour < 0 {
		return fmt.Errorf("max_tokens_per_hour must be non-negative, got %d", c.MaxTokensPerHour)
	}
	if c.MaxCostPerHour < 0 {
		return fmt.Errorf("max_cost_per_hour must be non-negative, got %.2f", c.MaxCostPerHour)
	}
	if c.AlertThreshold <= 0 || c.AlertThreshold > 1.0 {
		return fmt.Errorf("alert_threshold must be between 0 and 1, got %.2f", c.AlertThreshold)
	}
	if c.ResetInterval <= 0 {
		return fmt.Errorf("reset_interval must be positive, got %v", c.ResetInterval)
	}
	if c.InputTokenCost < 0 {
		return fmt.Errorf("input_token_cost must be non-negative, got %.2f", c.InputTokenCost)
	}
	if c.OutputTokenCost < 0 {
		return fmt.Errorf("output_token_cost must be non-negative, got %.2f", c.OutputTokenCost)
	}
	return nil
}
