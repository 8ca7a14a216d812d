package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testReply struct {
	Summary string   `json:"summary"`
	Steps   []string `json:"steps"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  testReply
	}{
		{
			name:  "direct",
			input: `{"summary": "crash", "steps": ["a"]}`,
			want:  testReply{Summary: "crash", Steps: []string{"a"}},
		},
		{
			name:  "json fence",
			input: "```json\n{\"summary\": \"fenced\", \"steps\": []}\n```",
			want:  testReply{Summary: "fenced", Steps: []string{}},
		},
		{
			name:  "bare fence without newlines",
			input: "```{\"summary\": \"tight\"}```",
			want:  testReply{Summary: "tight"},
		},
		{
			name:  "fence inside prose",
			input: "Here is the report:\n```json\n{\"summary\": \"prose\"}\n```\nHope it helps.",
			want:  testReply{Summary: "prose"},
		},
		{
			name:  "trailing commas",
			input: `{"summary": "commas", "steps": ["a", "b",],}`,
			want:  testReply{Summary: "commas", Steps: []string{"a", "b"}},
		},
		{
			name:  "unquoted keys",
			input: `{summary: "keys", steps: []}`,
			want:  testReply{Summary: "keys", Steps: []string{}},
		},
		{
			name:  "comment lines",
			input: "{\n  // the title\n  \"summary\": \"commented\"\n}",
			want:  testReply{Summary: "commented"},
		},
		{
			name:  "object inside prose",
			input: `Sure! {"summary": "mixed", "steps": ["x"]} Let me know.`,
			want:  testReply{Summary: "mixed", Steps: []string{"x"}},
		},
		{
			name:  "urls survive cleanup",
			input: `{"summary": "see https://mudlet.org/download", "steps": [],}`,
			want:  testReply{Summary: "see https://mudlet.org/download", Steps: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse[testReply](tt.input)
			require.True(t, res.Success, res.Error)
			assert.Equal(t, tt.want, res.Data)
			assert.Equal(t, tt.input, res.OriginalText)
		})
	}
}

func TestParseFailures(t *testing.T) {
	res := Parse[testReply]("   ")
	assert.False(t, res.Success)
	assert.Equal(t, "empty input", res.Error)

	res = Parse[testReply]("no json here at all", ParseOptions{Context: "extraction"})
	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Error, "extraction: all JSON parsing strategies failed"))

	res = Parse[testReply](`{"summary": "big"}`, ParseOptions{MaxInputSize: 5})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "exceeds size limit")

	res = Parse[testReply](`{"summary": "ok"}`, ParseOptions{MaxInputSize: -1})
	assert.True(t, res.Success)
}
