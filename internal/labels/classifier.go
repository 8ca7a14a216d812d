// Package labels infers tracker labels from free-form bug report text.
//
// A Classifier holds an ordered table of (pattern, label) pairs compiled once.
// Every pattern is matched case-insensitively anywhere in the text, and all
// matching labels are returned (deduplicated and sorted). The classifier is
// immutable after construction and safe for concurrent use.
package labels

import (
	"fmt"
	"regexp"
	"sort"
)

// Pattern maps a regular expression to the label it implies
type Pattern struct {
	Expr  string `yaml:"pattern"`
	Label string `yaml:"label"`
}

// DefaultPatterns returns the built-in pattern table.
// Patterns are matched with word boundaries and without regard to case.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Operating systems
		{`\b(windows|win10|win11|win\s*\d+)\b`, "OS:Windows"},
		{`\b(macos|mac\s*os|osx|macbook|sonoma|ventura|monterey)\b`, "OS:macOS"},
		{`\b(linux|ubuntu|debian|fedora|arch|manjaro|mint)\b`, "OS:GNU/Linux"},
		// Components
		{`\b(map|mapper|room|area|exit|path)\b`, "mapper bug"},
		{`\b(lua|script|trigger|alias|timer|keybind)\b`, "Lua only"},
		{`\b(ui|button|toolbar|font|display|window|dialog)\b`, "UI"},
		{`\b(network|connection|telnet|gmcp|msdp)\b`, "networking"},
		// Severity
		{`\b(crash(es|ed|ing)?|segfault|freeze[sd]?|hang[s]?|unresponsive)\b`, "high"},
		{`\b(regression|used\s+to\s+work|worked\s+before|broke|breaking)\b`, "regression"},
		// Type
		{`\b(feature\s+request|would\s+be\s+nice|wish|suggestion|please\s+add)\b`, "wishlist"},
		{`\b(documentation|docs|unclear|confusing)\b`, "needs documentation"},
	}
}

type compiledPattern struct {
	re    *regexp.Regexp
	label string
}

// Classifier detects labels using a fixed, pre-compiled pattern table
type Classifier struct {
	patterns []compiledPattern
}

// NewClassifier compiles patterns into a classifier.
// Each expression is compiled case-insensitively.
func NewClassifier(patterns []Pattern) (*Classifier, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for i, p := range patterns {
		if p.Label == "" {
			return nil, fmt.Errorf("pattern %d (%q): label is required", i, p.Expr)
		}
		if p.Expr == "" {
			return nil, fmt.Errorf("pattern %d (%s): expression is required", i, p.Label)
		}
		re, err := regexp.Compile(`(?i)` + p.Expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%s): %w", i, p.Label, err)
		}
		compiled = append(compiled, compiledPattern{re: re, label: p.Label})
	}
	return &Classifier{patterns: compiled}, nil
}

// MustNewClassifier is like NewClassifier but panics on an invalid table
func MustNewClassifier(patterns []Pattern) *Classifier {
	c, err := NewClassifier(patterns)
	if err != nil {
		panic(err)
	}
	return c
}

// Detect returns the sorted set of labels whose patterns occur in text
func (c *Classifier) Detect(text string) []string {
	detected := make(map[string]struct{})
	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			detected[p.label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(detected))
	for label := range detected {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Labels returns every label the classifier can produce, in table order
func (c *Classifier) Labels() []string {
	seen := make(map[string]struct{}, len(c.patterns))
	labels := make([]string, 0, len(c.patterns))
	for _, p := range c.patterns {
		if _, ok := seen[p.label]; ok {
			continue
		}
		seen[p.label] = struct{}{}
		labels = append(labels, p.label)
	}
	return labels
}

var defaultClassifier = MustNewClassifier(DefaultPatterns())

// Default returns the classifier built from DefaultPatterns
func Default() *Classifier {
	return defaultClassifier
}

// DetectLabels detects labels in text using the default pattern table
func DetectLabels(text string) []string {
	return defaultClassifier.Detect(text)
}
