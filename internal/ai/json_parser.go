package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxInputSize bounds the size of an LLM reply handed to Parse
const DefaultMaxInputSize = 1 << 20

var (
	// Fences with or without a language tag, optionally missing newlines
	fenceWholeRegex = regexp.MustCompile("(?s)^```(?:json|javascript|js)?\\s*\\n?(.*?)\\n?```\\s*$")
	fenceAnyRegex   = regexp.MustCompile("(?s)```(?:json|javascript|js)?\\s*\\n?(.*?)\\n?```")

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Greedy so nested objects are captured whole
	objectRegex = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseResult is the outcome of a tolerant JSON parse
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// ParseOptions configures Parse
type ParseOptions struct {
	Context      string // Prefix for error messages
	MaxInputSize int    // 0 means DefaultMaxInputSize, negative means unlimited
}

// Parse decodes JSON from an LLM reply, trying progressively looser strategies:
//  1. Direct decode
//  2. Strip markdown code fences
//  3. Drop trailing commas and comments, quote bare keys
//  4. Pull the outermost object out of surrounding prose
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var options ParseOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	limit := options.MaxInputSize
	if limit == 0 {
		limit = DefaultMaxInputSize
	}

	if limit > 0 && len(text) > limit {
		return failed[T](fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), limit),
			truncate(text, 1000), options.Context)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return failed[T]("empty input", text, options.Context)
	}

	candidates := []string{trimmed}
	unfenced := removeCodeFences(trimmed)
	if unfenced != trimmed {
		candidates = append(candidates, unfenced)
	}
	cleaned := cleanupJSON(unfenced)
	candidates = append(candidates, cleaned)
	if extracted := objectRegex.FindString(cleaned); extracted != "" && extracted != cleaned {
		candidates = append(candidates, extracted)
	}

	var firstErr error
	for _, candidate := range candidates {
		var data T
		err := json.Unmarshal([]byte(candidate), &data)
		if err == nil {
			return ParseResult[T]{Success: true, Data: data, OriginalText: text}
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return failed[T](fmt.Sprintf("all JSON parsing strategies failed: %v", firstErr), text, options.Context)
}

// removeCodeFences strips markdown code fences from text
func removeCodeFences(text string) string {
	if m := fenceWholeRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fenceAnyRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if len(text) > 1 && strings.HasPrefix(text, "`") && strings.HasSuffix(text, "`") {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	return text
}

// cleanupJSON fixes the formatting slips LLMs commonly make.
// Single quotes are left alone so apostrophes inside strings survive.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	return strings.TrimSpace(cleaned)
}

func failed[T any](message, text, context string) ParseResult[T] {
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Error: message, OriginalText: text}
}

// truncate shortens s to maxLen bytes for log previews
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
