package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const (
	maxSuggestions         = 4
	suggestionSampleRows   = 3
	suggestionTemperature  = 0.7
	suggestionMaxTokens    = 500
	suggestionSystemPrompt = "你是一個專業的數據分析助手，擅長根據用戶的查詢生成相關且有價值的後續問題建議。只返回有效的 JSON 格式。"
)

// SuggestionInput describes the turn follow-up questions are generated for.
type SuggestionInput struct {
	Question string
	SQL      string
	Columns  []string
	Rows     []models.Row
}

// SuggestionGenerator proposes follow-up questions.
type SuggestionGenerator interface {
	// Suggest returns up to four follow-up questions, or an empty slice.
	Suggest(ctx context.Context, in SuggestionInput) []string
}

type suggestionGenerator struct {
	client  llm.LLMClient
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSuggestionGenerator creates a generator. A nil client yields no suggestions.
func NewSuggestionGenerator(client llm.LLMClient, m *metrics.Metrics, logger *zap.Logger) SuggestionGenerator {
	return &suggestionGenerator{
		client:  client,
		metrics: m,
		logger:  logger.Named("suggestions"),
	}
}

var _ SuggestionGenerator = (*suggestionGenerator)(nil)

type suggestionsReply struct {
	Suggestions []any `json:"suggestions"`
}

func (g *suggestionGenerator) Suggest(ctx context.Context, in SuggestionInput) []string {
	if g.client == nil {
		return []string{}
	}

	return Attempt(ctx, g.logger, "suggest", []string{}, func(ctx context.Context) ([]string, error) {
		start := time.Now()
		result, err := g.client.GenerateResponse(ctx, suggestionPrompt(in), suggestionSystemPrompt, suggestionTemperature, suggestionMaxTokens)
		g.metrics.ObserveLLM("suggest", start)
		if err != nil {
			return nil, err
		}

		reply, err := llm.ParseJSONResponse[suggestionsReply](result.Content)
		if err != nil {
			return nil, fmt.Errorf("parse suggestions: %w", err)
		}

		out := make([]string, 0, maxSuggestions)
		for _, s := range reply.Suggestions {
			text, ok := s.(string)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			out = append(out, text)
			if len(out) == maxSuggestions {
				break
			}
		}
		return out, nil
	})
}

func suggestionPrompt(in SuggestionInput) string {
	parts := []string{"用戶剛才查詢的問題：" + in.Question}
	if in.SQL != "" {
		parts = append(parts, "執行的 SQL 查詢："+in.SQL)
	}
	if len(in.Rows) > 0 {
		columns := in.Columns
		if len(columns) == 0 {
			for k := range in.Rows[0] {
				columns = append(columns, k)
			}
		}
		parts = append(parts,
			fmt.Sprintf("查詢結果：共 %d 條記錄", len(in.Rows)),
			"結果欄位："+strings.Join(columns, ", "),
			"結果樣本："+sampleJSON(in.Rows))
	}

	return fmt.Sprintf(`你是一個智能數據查詢助手。請根據用戶剛才的查詢，生成4個相關的、有價值的後續查詢建議。

%s

要求：
1. 建議必須與用戶剛才的查詢高度相關
2. 建議應該基於查詢結果的欄位和數據內容
3. 建議應該是有意義的、可以執行的查詢問題
4. 建議應該幫助用戶深入探索數據或從不同角度分析
5. 使用繁體中文，問題要簡潔清晰
6. 避免重複用戶已經查詢過的內容

請返回 JSON 格式的建議列表：
{
  "suggestions": [
    "建議問題1",
    "建議問題2",
    "建議問題3",
    "建議問題4"
  ]
}

只返回 JSON，不要其他說明文字。`, strings.Join(parts, "\n"))
}

func sampleJSON(rows []models.Row) string {
	if len(rows) > suggestionSampleRows {
		rows = rows[:suggestionSampleRows]
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rows); err != nil {
		return "[]"
	}
	return strings.TrimSpace(buf.String())
}
