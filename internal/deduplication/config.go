package deduplication

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mudlet/bugbot/internal/types"
)

// Config holds configuration for duplicate detection
type Config struct {
	// Enabled turns duplicate detection on for the reporting flow.
	// The detector itself ignores it; callers skip detection when false.
	// Default: true
	Enabled bool

	// HighThreshold is the similarity a candidate must exceed to be tiered
	// high. Only open candidates can be high.
	// Default: 0.7
	HighThreshold float64

	// MediumThreshold is the similarity a candidate must exceed to be tiered
	// medium (open candidates below HighThreshold and closed candidates).
	// Default: 0.5
	MediumThreshold float64

	// MaxResults is the number of candidates requested from the searcher
	// when the caller does not specify one.
	// Default: 5
	MaxResults int

	// QueryKeywords is the number of merged keywords sent to the searcher.
	// Default: 5
	QueryKeywords int

	// KeywordsPerSource caps the keywords extracted from the title and from
	// the joined steps individually, before merging.
	// Default: 10
	KeywordsPerSource int
}

// DefaultConfig returns the default duplicate detection configuration
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		HighThreshold:     0.7,
		MediumThreshold:   0.5,
		MaxResults:        5,
		QueryKeywords:     5,
		KeywordsPerSource: DefaultMaxKeywords,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.HighThreshold < 0.0 || c.HighThreshold > 1.0 {
		return fmt.Errorf("high_threshold must be between 0.0 and 1.0 (got %.2f)", c.HighThreshold)
	}
	if c.MediumThreshold < 0.0 || c.MediumThreshold > 1.0 {
		return fmt.Errorf("medium_threshold must be between 0.0 and 1.0 (got %.2f)", c.MediumThreshold)
	}
	if c.MediumThreshold > c.HighThreshold {
		return fmt.Errorf("medium_threshold (%.2f) cannot exceed high_threshold (%.2f)",
			c.MediumThreshold, c.HighThreshold)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive (got %d)", c.MaxResults)
	}
	if c.MaxResults > 100 {
		return fmt.Errorf("max_results too large (got %d, max 100)", c.MaxResults)
	}
	if c.QueryKeywords <= 0 {
		return fmt.Errorf("query_keywords must be positive (got %d)", c.QueryKeywords)
	}
	if c.KeywordsPerSource < c.QueryKeywords {
		return fmt.Errorf("keywords_per_source (%d) must be at least query_keywords (%d)",
			c.KeywordsPerSource, c.QueryKeywords)
	}
	return nil
}

// Tier assigns a confidence tier from a similarity score and issue state.
// A closed issue is never tiered high.
func (c Config) Tier(score float64, state types.IssueState) types.Confidence {
	switch {
	case score > c.HighThreshold && state == types.StateOpen:
		return types.ConfidenceHigh
	case score > c.MediumThreshold:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// QueryKeywordsFor builds the search query for a report: title keywords
// first, then step keywords not already present, truncated to QueryKeywords.
func (c Config) QueryKeywordsFor(title string, steps []string) []string {
	titleKeywords := ExtractKeywords(title, c.KeywordsPerSource)
	stepKeywords := ExtractKeywords(joinSteps(steps), c.KeywordsPerSource)
	return MergeKeywords(titleKeywords, stepKeywords, c.QueryKeywords)
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Enabled: %t, High: %.2f, Medium: %.2f, MaxResults: %d, QueryKeywords: %d, PerSource: %d}",
		c.Enabled, c.HighThreshold, c.MediumThreshold, c.MaxResults, c.QueryKeywords, c.KeywordsPerSource,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - ENABLE_DUPLICATE_DETECTION: Run duplicate detection when preparing reports (default: true)
//   - BUGBOT_DEDUP_HIGH_THRESHOLD: Similarity above which open issues are high (default: 0.7)
//   - BUGBOT_DEDUP_MEDIUM_THRESHOLD: Similarity above which issues are medium (default: 0.5)
//   - BUGBOT_DEDUP_MAX_RESULTS: Candidates requested from search (default: 5)
//   - BUGBOT_DEDUP_QUERY_KEYWORDS: Keywords in the search query (default: 5)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvBool("ENABLE_DUPLICATE_DETECTION", &cfg.Enabled); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("BUGBOT_DEDUP_HIGH_THRESHOLD", &cfg.HighThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("BUGBOT_DEDUP_MEDIUM_THRESHOLD", &cfg.MediumThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("BUGBOT_DEDUP_MAX_RESULTS", &cfg.MaxResults); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("BUGBOT_DEDUP_QUERY_KEYWORDS", &cfg.QueryKeywords); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
