package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/render"
)

const (
	expansionWindow       = 4
	expansionSummaryRunes = 200
	expansionMaxRunes     = 200
	expansionTemperature  = 0.3
	expansionMaxTokens    = 150

	expansionSystemMessage = "你是一個專業的數據分析助手，擅長理解對話上下文並將簡短的指令擴展為完整的問題。"
)

// QuestionExpander rewrites short follow-ups into complete questions.
type QuestionExpander interface {
	// Expand returns the rewritten question, or question itself when the
	// rewrite is unavailable or unusable. It never fails.
	Expand(ctx context.Context, question string, history []models.Message) string
}

type questionExpander struct {
	client  llm.LLMClient
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewQuestionExpander creates an expander. A nil client disables expansion.
func NewQuestionExpander(client llm.LLMClient, m *metrics.Metrics, logger *zap.Logger) QuestionExpander {
	return &questionExpander{
		client:  client,
		metrics: m,
		logger:  logger.Named("expansion"),
	}
}

var _ QuestionExpander = (*questionExpander)(nil)

func (e *questionExpander) Expand(ctx context.Context, question string, history []models.Message) string {
	if e.client == nil {
		return question
	}

	convo := expansionContext(history)
	if convo == "" {
		return question
	}

	expanded := Attempt(ctx, e.logger, "expand_question", question, func(ctx context.Context) (string, error) {
		start := time.Now()
		defer e.metrics.ObserveLLM("expand", start)

		result, err := e.client.GenerateResponse(ctx, expansionPrompt(convo, question), expansionSystemMessage, expansionTemperature, expansionMaxTokens)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(result.Content), nil
	})

	if !usableExpansion(expanded) {
		e.logger.Debug("Discarding expansion", zap.String("expansion", expanded))
		return question
	}
	if expanded != question {
		e.logger.Info("Expanded question",
			zap.String("question", question),
			zap.String("expanded", expanded))
	}
	return expanded
}

func usableExpansion(s string) bool {
	return s != "" &&
		utf8.RuneCountInString(s) <= expansionMaxRunes &&
		!strings.HasPrefix(s, "根據")
}

func expansionContext(history []models.Message) string {
	if len(history) > expansionWindow {
		history = history[len(history)-expansionWindow:]
	}

	var lines []string
	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			lines = append(lines, userContextPrefix+msg.Content)
		case models.RoleAssistant:
			summary, _, _ := strings.Cut(msg.Content, render.ResultHeaderMarker)
			summary, _, _ = strings.Cut(summary, "```table")
			summary, _, _ = strings.Cut(summary, "```chart")
			summary = strings.TrimSpace(summary)
			if summary != "" {
				lines = append(lines, assistantContextLabel+truncateRunes(summary, expansionSummaryRunes))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func expansionPrompt(convo, question string) string {
	return fmt.Sprintf(`你是一個智能助手，負責理解用戶的簡短指令並轉換成完整的問題。

對話歷史：
%s

用戶當前問題：%s

請分析：
1. 如果用戶的問題是簡短指令（如"bar圖"、"柱狀圖"、"pie圖"等），請根據對話歷史理解用戶的意圖
2. 將簡短指令轉換成完整的、清晰的問題
3. 如果問題已經很完整，直接返回原問題
4. 如果用戶想要改變圖表類型，請明確指出圖表類型（line/bar/pie/scatter）
5. 保持問題簡潔，不要添加多餘的解釋

只返回轉換後的問題，不要添加任何其他說明。`, convo, question)
}
