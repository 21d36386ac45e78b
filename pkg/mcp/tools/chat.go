package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// askResult is the ask_database payload. Rows are omitted when the turn failed.
type askResult struct {
	ConversationID string       `json:"conversation_id"`
	SQL            string       `json:"sql,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
	Columns        []string     `json:"columns,omitempty"`
	Rows           []models.Row `json:"rows,omitempty"`
	RowCount       int          `json:"row_count"`
	Answer         string       `json:"answer"`
	Suggestions    []string     `json:"suggestions"`
}

// RegisterAskTool adds the ask_database tool, which runs one chat turn
// without streaming and returns the collected answer.
func RegisterAskTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Ask a question about the database in natural language. "+
				"The question is translated to SQL, executed, and the rows are returned together with the SQL and an explanation. "+
				"Pass conversation_id from a previous answer to ask a follow-up (for example 'show that as a bar chart')."),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. '顯示所有用戶' or 'how many orders were placed last week?'"),
		),
		mcp.WithString(
			"conversation_id",
			mcp.Description("Optional - conversation to continue"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return NewErrorResult("invalid_parameters", "question is required"), nil
		}
		convID := strings.TrimSpace(req.GetString("conversation_id", ""))

		answer, err := deps.Chat.Ask(ctx, services.ChatRequest{Question: question, ConversationID: convID})
		if err != nil {
			deps.Logger.Error("ask_database failed", zap.Error(err))
			return serviceError(err)
		}

		result := answer.Result
		if result == nil {
			return NewErrorResult("no_result", "no answer was produced"), nil
		}
		if result.Failed() {
			return NewErrorResultWithDetails("query_failed", result.ErrorText(), map[string]any{
				"conversation_id": answer.ConversationID,
				"sql":             result.SQLText(),
				"suggestions":     answer.Suggestions,
			}), nil
		}

		out := askResult{
			ConversationID: answer.ConversationID,
			SQL:            result.SQLText(),
			Columns:        result.Columns,
			Rows:           result.Result,
			RowCount:       len(result.Result),
			Answer:         answer.Content,
			Suggestions:    answer.Suggestions,
		}
		if result.Explanation != nil {
			out.Explanation = *result.Explanation
		}
		return jsonResult(out)
	})
}
