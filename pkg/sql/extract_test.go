package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testKeywords = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "SHOW", "DESCRIBE", "WITH"}

func TestExtractFencedSQL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain sql", input: "  SELECT * FROM users  ", expected: "SELECT * FROM users"},
		{name: "sql fence", input: "Here you go:\n```sql\nSELECT * FROM users;\n```\nDone.", expected: "SELECT * FROM users;"},
		{name: "sql fence preferred over earlier bare fence", input: "```\nnote\n```\n```sql\nSELECT 1\n```", expected: "SELECT 1"},
		{name: "unterminated sql fence falls back to bare fence", input: "```\nSELECT 2\n```\n```sql SELECT 1", expected: "SELECT 2"},
		{name: "bare fence", input: "```\nSELECT 1\n```", expected: "SELECT 1"},
		{name: "other language tag dropped", input: "```mysql\nSELECT 1;\n```", expected: "SELECT 1;"},
		{name: "inline bare fence keeps first word", input: "```SELECT 1```", expected: "SELECT 1"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractFencedSQL(tt.input))
		})
	}
}

func TestFirstSQLBlock(t *testing.T) {
	sqlText, ok := FirstSQLBlock("共 3 筆\n\n```sql\nSELECT id FROM users\n```")
	assert.True(t, ok)
	assert.Equal(t, "SELECT id FROM users", sqlText)

	_, ok = FirstSQLBlock("no code here")
	assert.False(t, ok)
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "line comment", input: "-- list users\nSELECT * FROM users", expected: "SELECT * FROM users"},
		{name: "block comment", input: "SELECT/* all */* FROM users", expected: "SELECT * FROM users"},
		{name: "dashes inside literal survive", input: "SELECT * FROM t WHERE s = '--x'", expected: "SELECT * FROM t WHERE s = '--x'"},
		{name: "only comments", input: "-- nothing\n/* here */", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripComments(tt.input))
		})
	}
}

func TestLooksLikeSQL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "select", input: "SELECT * FROM users", expected: true},
		{name: "lowercase with", input: "with x as (select 1) select * from x", expected: true},
		{name: "comment then query", input: "-- users\nselect 1", expected: true},
		{name: "keyword only inside comment", input: "-- SELECT is not possible here", expected: true},
		{name: "refusal", input: "I cannot find that table", expected: false},
		{name: "chinese refusal", input: "資料庫中沒有這個表", expected: false},
		{name: "keyword only as substring", input: "The showcase was not found", expected: false},
		{name: "keyword glued to chinese", input: "查詢SELECT * FROM t", expected: true},
		{name: "keyword between chinese", input: "請用select查詢", expected: true},
		{name: "substring glued to chinese", input: "查詢showcase結果", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LooksLikeSQL(tt.input, testKeywords))
		})
	}
}
