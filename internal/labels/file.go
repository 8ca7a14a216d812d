package labels

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// patternFile is the on-disk form of a pattern table
type patternFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// LoadPatterns reads a YAML pattern table from path.
//
// Example:
//
//	patterns:
//	  - pattern: '\b(lua|script)\b'
//	    label: Lua only
func LoadPatterns(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	return ParsePatterns(data)
}

// ParsePatterns decodes a YAML pattern table
func ParsePatterns(data []byte) ([]Pattern, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file: %w", err)
	}
	if len(f.Patterns) == 0 {
		return nil, fmt.Errorf("pattern file defines no patterns")
	}
	return f.Patterns, nil
}

// LoadClassifier builds a classifier from path, or the default classifier
// when path is empty
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	patterns, err := LoadPatterns(path)
	if err != nil {
		return nil, err
	}
	return NewClassifier(patterns)
}
