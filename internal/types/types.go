package types

import (
	"fmt"
	"strings"
)

// Message is a single chat turn handed to the extractor
type Message struct {
	ID      string `json:"id,omitempty"` // Discord message ID when known
	Author  string `json:"author"`
	Content string `json:"content"`
}

// IssueState represents the state of an issue on the tracker
type IssueState string

const (
	StateOpen   IssueState = "open"
	StateClosed IssueState = "closed"
)

// IsValid checks if the state value is valid
func (s IssueState) IsValid() bool {
	switch s {
	case StateOpen, StateClosed:
		return true
	}
	return false
}

// Confidence annotates how likely a candidate is a true duplicate.
// The same three tiers are used by the extractor to grade a report.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid checks if the confidence value is valid
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// CandidateIssue is an existing issue returned by the search collaborator
type CandidateIssue struct {
	Number int        `json:"number"`
	Title  string     `json:"title"`
	URL    string     `json:"url"`
	State  IssueState `json:"state"`
}

// Validate checks that the search collaborator returned a well-formed record
func (c *CandidateIssue) Validate() error {
	if c.Number <= 0 {
		return fmt.Errorf("number must be positive (got %d)", c.Number)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title is required (issue #%d)", c.Number)
	}
	if c.URL == "" {
		return fmt.Errorf("url is required (issue #%d)", c.Number)
	}
	if !c.State.IsValid() {
		return fmt.Errorf("invalid state %q (issue #%d)", c.State, c.Number)
	}
	return nil
}

// DuplicateResult is a candidate issue annotated with a confidence tier
type DuplicateResult struct {
	Number     int        `json:"number"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	State      IssueState `json:"state"`
	Confidence Confidence `json:"confidence"`
}

// AnyHighConfidence reports whether any result is tiered high
func AnyHighConfidence(results []DuplicateResult) bool {
	for _, r := range results {
		if r.Confidence == ConfidenceHigh {
			return true
		}
	}
	return false
}
