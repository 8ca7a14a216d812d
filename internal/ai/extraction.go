package ai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mudlet/bugbot/internal/types"
)

// RequiredFields lists the keys every extraction reply must carry
var RequiredFields = []string{"summary", "steps", "error_output", "extra_info", "confidence", "missing_info"}

// ErrInvalidResponse is returned when a provider reply is not a usable extraction
var ErrInvalidResponse = errors.New("invalid LLM response")

// ParseExtraction decodes a provider reply into an Extraction.
// Code fences and minor JSON slips are tolerated; missing keys are not.
func ParseExtraction(text string) (*types.Extraction, error) {
	res := Parse[map[string]json.RawMessage](text, ParseOptions{Context: "extraction"})
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, res.Error)
	}
	if res.Data == nil {
		return nil, fmt.Errorf("%w: response is not a JSON object", ErrInvalidResponse)
	}
	for _, field := range RequiredFields {
		if _, ok := res.Data[field]; !ok {
			return nil, fmt.Errorf("%w: missing required field: %s", ErrInvalidResponse, field)
		}
	}

	raw, err := json.Marshal(res.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	var ext types.Extraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &ext, nil
}
