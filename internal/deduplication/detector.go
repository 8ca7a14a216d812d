package deduplication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mudlet/bugbot/internal/logging"
	"github.com/mudlet/bugbot/internal/types"
)

// ErrMalformedCandidate is returned when the searcher yields a record that
// is missing a required field
var ErrMalformedCandidate = errors.New("malformed candidate issue")

// Searcher finds existing issues matching a keyword query. Results are
// returned in the searcher's own relevance order, at most maxResults long.
type Searcher interface {
	SearchIssues(ctx context.Context, keywords []string, maxResults int) ([]types.CandidateIssue, error)
}

// Detector finds likely duplicates of a new report among existing issues.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	searcher Searcher
	cfg      Config
	log      *slog.Logger
}

// NewDetector creates a detector backed by searcher
func NewDetector(searcher Searcher, cfg Config) (*Detector, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deduplication config: %w", err)
	}
	return &Detector{
		searcher: searcher,
		cfg:      cfg,
		log:      logging.New("deduplication"),
	}, nil
}

// Config returns the detector's configuration
func (d *Detector) Config() Config {
	return d.cfg
}

// FindDuplicates searches for issues similar to title and steps and tiers
// each candidate by title similarity. Results keep the searcher's order.
//
// When no keywords can be extracted the searcher is not called and an empty
// result is returned. A maxResults <= 0 uses the configured default.
// Search errors are returned wrapped; they are never retried here.
func (d *Detector) FindDuplicates(ctx context.Context, title string, steps []string, maxResults int) ([]types.DuplicateResult, error) {
	if maxResults <= 0 {
		maxResults = d.cfg.MaxResults
	}

	keywords := d.cfg.QueryKeywordsFor(title, steps)
	if len(keywords) == 0 {
		d.log.Debug("no keywords extracted, skipping search", "title", title)
		return []types.DuplicateResult{}, nil
	}

	candidates, err := d.searcher.SearchIssues(ctx, keywords, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search for duplicates of %q: %w", title, err)
	}

	results := make([]types.DuplicateResult, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrMalformedCandidate, i, err)
		}
		score := Similarity(title, c.Title)
		results = append(results, types.DuplicateResult{
			Number:     c.Number,
			Title:      c.Title,
			URL:        c.URL,
			State:      c.State,
			Confidence: d.cfg.Tier(score, c.State),
		})
	}

	d.log.Debug("duplicate search complete",
		"keywords", strings.Join(keywords, " "),
		"candidates", len(results))
	return results, nil
}

// HasHighConfidenceDuplicate reports whether FindDuplicates yields at least
// one high confidence result
func (d *Detector) HasHighConfidenceDuplicate(ctx context.Context, title string, steps []string) (bool, error) {
	results, err := d.FindDuplicates(ctx, title, steps, 0)
	if err != nil {
		return false, err
	}
	return types.AnyHighConfidence(results), nil
}

// Tier assigns a confidence tier using the default thresholds
func Tier(score float64, state types.IssueState) types.Confidence {
	return DefaultConfig().Tier(score, state)
}

func joinSteps(steps []string) string {
	return strings.Join(steps, " ")
}
