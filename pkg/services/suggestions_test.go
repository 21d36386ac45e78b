package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

func TestSuggestionGenerator_Suggest(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected []string
	}{
		{
			name:     "plain json",
			reply:    `{"suggestions": ["a", "b"]}`,
			expected: []string{"a", "b"},
		},
		{
			name:     "fenced json capped at four",
			reply:    "```json\n{\"suggestions\": [\"1\", \"2\", \"3\", \"4\", \"5\"]}\n```",
			expected: []string{"1", "2", "3", "4"},
		},
		{
			name:     "non strings and blanks dropped",
			reply:    `{"suggestions": ["a", 3, "", "  ", {"q": "x"}, "b"]}`,
			expected: []string{"a", "b"},
		},
		{
			name:     "not json",
			reply:    "I have no ideas",
			expected: []string{},
		},
		{
			name:     "missing key",
			reply:    `{"ideas": ["a"]}`,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewMockLLMClientWithResponse(tt.reply)
			g := NewSuggestionGenerator(client, nil, zap.NewNop())

			got := g.Suggest(context.Background(), SuggestionInput{Question: "q"})
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSuggestionGenerator_ClientError(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("rate limited")
	}

	got := NewSuggestionGenerator(client, nil, zap.NewNop()).Suggest(context.Background(), SuggestionInput{Question: "q"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSuggestionGenerator_NilClient(t *testing.T) {
	got := NewSuggestionGenerator(nil, nil, zap.NewNop()).Suggest(context.Background(), SuggestionInput{Question: "q"})
	assert.Equal(t, []string{}, got)
}

func TestSuggestionGenerator_Prompt(t *testing.T) {
	client := llm.NewMockLLMClientWithResponse(`{"suggestions": []}`)
	g := NewSuggestionGenerator(client, nil, zap.NewNop())

	g.Suggest(context.Background(), SuggestionInput{
		Question: "顯示所有用戶",
		SQL:      "SELECT * FROM users",
		Columns:  []string{"name"},
		Rows: []models.Row{
			{"name": "a<b"}, {"name": "b"}, {"name": "c"}, {"name": "d"},
		},
	})

	require.Len(t, client.Calls, 1)
	call := client.Calls[0]
	assert.Equal(t, suggestionSystemPrompt, call.SystemMessage)
	assert.Equal(t, 0.7, call.Temperature)
	assert.Equal(t, 500, call.MaxTokens)
	assert.Contains(t, call.Prompt, "用戶剛才查詢的問題：顯示所有用戶\n執行的 SQL 查詢：SELECT * FROM users\n查詢結果：共 4 條記錄\n結果欄位：name\n")
	assert.Contains(t, call.Prompt, `結果樣本：[{"name":"a<b"},{"name":"b"},{"name":"c"}]`)
}
