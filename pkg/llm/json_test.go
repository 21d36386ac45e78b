package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain object", input: `{"name": "test", "value": 123}`, expected: `{"name": "test", "value": 123}`},
		{name: "plain array", input: `[{"name": "a"}, {"name": "b"}]`, expected: `[{"name": "a"}, {"name": "b"}]`},
		{name: "nested", input: `{"items": [{"nested": {"array": [1, 2, 3]}}]}`, expected: `{"items": [{"nested": {"array": [1, 2, 3]}}]}`},
		{name: "think tags", input: "<think>\nplanning\n</think>\n{\"suggestions\": [\"a\"]}", expected: `{"suggestions": ["a"]}`},
		{name: "json fence", input: "```json\n{\"suggestions\": [\"每月訂單數？\"]}\n```", expected: `{"suggestions": ["每月訂單數？"]}`},
		{name: "bare fence", input: "```\n[\"a\", \"b\"]\n```", expected: `["a", "b"]`},
		{name: "prose around", input: "以下是結果：\n{\"name\": \"test\"}\n希望有幫助", expected: `{"name": "test"}`},
		{name: "brackets in strings", input: `{"message": "Use {braces} and [brackets]", "count": 1}`, expected: `{"message": "Use {braces} and [brackets]", "count": 1}`},
		{name: "escaped quotes", input: `{"message": "He said \"hi\"", "ok": true}`, expected: `{"message": "He said \"hi\"", "ok": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExtractJSON_Errors(t *testing.T) {
	for _, input := range []string{"", "plain text with no JSON", `{"unclosed": "object"`} {
		_, err := ExtractJSON(input)
		assert.Error(t, err, input)
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripCodeFence("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, "no fence", StripCodeFence("  no fence  "))
}

func TestParseJSONResponse(t *testing.T) {
	type suggestions struct {
		Suggestions []string `json:"suggestions"`
	}

	result, err := ParseJSONResponse[suggestions]("<think>x</think>```json\n{\"suggestions\": [\"a\", \"b\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Suggestions)

	_, err = ParseJSONResponse[suggestions](`{"suggestions": "not a list"}`)
	assert.Error(t, err)
}
