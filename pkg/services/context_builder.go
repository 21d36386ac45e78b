package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/render"
	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

const (
	contextWindow         = 6
	contextAnswerRunes    = 150
	contextSQLRunes       = 100
	userContextPrefix     = "用戶: "
	assistantContextLabel = "助手: "
)

var residualBlockPattern = regexp.MustCompile("(?s)```(?:table|chart).*?(```|$)")

// BuildContext summarizes the most recent messages for the SQL generator.
// It returns an empty string when no message contributes anything.
func BuildContext(history []models.Message) string {
	if len(history) > contextWindow {
		history = history[len(history)-contextWindow:]
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			lines = append(lines, userContextPrefix+msg.Content)
		case models.RoleAssistant:
			if line := summarizeAssistant(msg.Content); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func summarizeAssistant(content string) string {
	var parts []string
	if answer := explanationPart(content); answer != "" {
		parts = append(parts, "回答: "+truncateRunes(answer, contextAnswerRunes))
	}
	if sqlText, ok := sqlutil.FirstSQLBlock(content); ok && sqlText != "" {
		parts = append(parts, "執行的SQL: "+truncateRunes(sqlText, contextSQLRunes))
	}
	if len(parts) == 0 {
		return ""
	}
	return assistantContextLabel + strings.Join(parts, " | ")
}

// explanationPart keeps the prose that precedes the rendered result.
func explanationPart(content string) string {
	text, _, _ := strings.Cut(content, render.ResultHeaderMarker)
	text, _, _ = strings.Cut(text, "```sql")
	text = residualBlockPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// EnhanceQuestion wraps question with the conversation context, if any.
func EnhanceQuestion(question, context string) string {
	if context == "" {
		return question
	}
	return fmt.Sprintf("對話歷史：\n%s\n\n當前問題：%s\n\n請根據對話歷史理解當前問題的上下文，生成合適的 SQL 查詢。", context, question)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
