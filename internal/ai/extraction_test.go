package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudlet/bugbot/internal/types"
)

const validReply = `{
  "summary": "Mapper: rooms not connecting properly",
  "steps": ["Open the mapper", "Create two rooms", "Link them with an exit"],
  "error_output": "",
  "extra_info": "Mudlet 4.17.2 on Windows 11",
  "confidence": "medium",
  "missing_info": null
}`

func TestParseExtraction(t *testing.T) {
	ext, err := ParseExtraction(validReply)
	require.NoError(t, err)
	assert.Equal(t, "Mapper: rooms not connecting properly", ext.Summary)
	assert.Len(t, ext.Steps, 3)
	assert.Equal(t, types.ConfidenceMedium, ext.Confidence)
	assert.Nil(t, ext.MissingInfo)

	fenced, err := ParseExtraction("```json\n" + validReply + "\n```")
	require.NoError(t, err)
	assert.Equal(t, ext, fenced)

	withMissing := strings.Replace(validReply, `"missing_info": null`, `"missing_info": "Need Mudlet version"`, 1)
	ext, err = ParseExtraction(withMissing)
	require.NoError(t, err)
	require.NotNil(t, ext.MissingInfo)
	assert.Equal(t, "Need Mudlet version", *ext.MissingInfo)
}

func TestParseExtractionErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"not json", "I could not find a bug here.", "all JSON parsing strategies failed"},
		{"array", `["summary"]`, "all JSON parsing strategies failed"},
		{"null", "null", "not a JSON object"},
		{"missing field", strings.Replace(validReply, `"error_output": "",`, "", 1), "missing required field: error_output"},
		{"missing confidence", strings.Replace(validReply, `"confidence": "medium",`, "", 1), "missing required field: confidence"},
		{"wrong type", strings.Replace(validReply, `"steps": ["Open the mapper", "Create two rooms", "Link them with an exit"]`, `"steps": 3`, 1), "invalid LLM response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExtraction(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidResponse)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestFormatConversation(t *testing.T) {
	got := FormatConversation([]types.Message{
		{Author: "vadi", Content: "the mapper crashed again"},
		{Author: "", Content: "which version?"},
	})
	want := "## Discord Conversation\n\n" +
		"vadi: the mapper crashed again\n" +
		"Unknown: which version?\n\n" +
		"## Task\nExtract a bug report from this conversation. Respond with JSON only."
	assert.Equal(t, want, got)

	assert.Contains(t, SystemPrompt, `"missing_info"`)
	for _, field := range RequiredFields {
		assert.Contains(t, SystemPrompt, `"`+field+`"`)
	}
}
