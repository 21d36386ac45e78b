package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

type toolResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
		Tools   []struct {
			Name string `json:"name"`
		} `json:"tools"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r toolResponse) text() string {
	if len(r.Result.Content) == 0 {
		return ""
	}
	return r.Result.Content[0].Text
}

func newTestServer(deps *Deps) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, deps)
	return s
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)
	msg := fmt.Sprintf(`{"jsonrpc":"2.0","method":"tools/call","params":%s,"id":1}`, params)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(msg)))
	require.NoError(t, err)

	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestRegisterAll_ListsTools(t *testing.T) {
	s := newTestServer(&Deps{})

	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)
	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask_database", "list_tables", "get_table_ddl", "training_data", "health"}, names)
}

func TestAskDatabase_Success(t *testing.T) {
	sqlText := "SELECT name FROM users"
	chat := &mockChatService{answer: &services.ChatAnswer{
		ConversationID: "conv_abc123def456",
		Result:         models.NewSuccessResult(sqlText, []string{"name"}, []models.Row{{"name": "Ann"}}, "查詢所有用戶"),
		Content:        "查詢所有用戶\n\n| name |",
		Suggestions:    []string{"顯示用戶數量"},
	}}
	s := newTestServer(&Deps{Chat: chat})

	resp := callTool(t, s, "ask_database", map[string]any{"question": "顯示所有用戶", "conversation_id": "conv_abc123def456"})

	require.Nil(t, resp.Error)
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, "顯示所有用戶", chat.lastReq.Question)
	assert.Equal(t, "conv_abc123def456", chat.lastReq.ConversationID)

	var out askResult
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
	assert.Equal(t, sqlText, out.SQL)
	assert.Equal(t, 1, out.RowCount)
	assert.Equal(t, "查詢所有用戶", out.Explanation)
	assert.Equal(t, []string{"顯示用戶數量"}, out.Suggestions)
}

func TestAskDatabase_FailedTurn(t *testing.T) {
	chat := &mockChatService{answer: &services.ChatAnswer{
		ConversationID: "conv_abc123def456",
		Result:         models.NewErrorResult("SELECT * FROM nope", "查詢的表格不存在"),
		Suggestions:    []string{"查看所有表格"},
	}}
	s := newTestServer(&Deps{Chat: chat})

	resp := callTool(t, s, "ask_database", map[string]any{"question": "顯示 nope"})

	require.Nil(t, resp.Error)
	assert.True(t, resp.Result.IsError)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
	assert.Equal(t, "query_failed", out.Code)
	assert.Equal(t, "查詢的表格不存在", out.Message)
}

func TestAskDatabase_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		err      error
		wantCode string
		wantRPC  bool
	}{
		{name: "missing question", args: map[string]any{}, wantCode: "invalid_parameters"},
		{name: "blank question", args: map[string]any{"question": "  "}, wantCode: "invalid_parameters"},
		{
			name:     "invalid input from service",
			args:     map[string]any{"question": "x"},
			err:      fmt.Errorf("%w: question is required", apperrors.ErrInvalidInput),
			wantCode: "invalid_parameters",
		},
		{name: "unexpected failure", args: map[string]any{"question": "x"}, err: errors.New("boom"), wantRPC: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&Deps{Chat: &mockChatService{err: tt.err}})

			resp := callTool(t, s, "ask_database", tt.args)

			if tt.wantRPC {
				require.NotNil(t, resp.Error)
				return
			}
			require.Nil(t, resp.Error)
			assert.True(t, resp.Result.IsError)
			var out ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
			assert.Equal(t, tt.wantCode, out.Code)
		})
	}
}

func TestListTables(t *testing.T) {
	s := newTestServer(&Deps{Tables: &mockTableService{tables: []services.TableInfo{
		{TableName: "users"}, {TableName: "orders"},
	}}})

	resp := callTool(t, s, "list_tables", nil)

	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"tables":["users","orders"],"count":2}`, resp.text())
}

func TestListTables_NotInitialized(t *testing.T) {
	s := newTestServer(&Deps{Tables: &mockTableService{err: apperrors.ErrNotInitialized}})

	resp := callTool(t, s, "list_tables", nil)

	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.text(), "not_initialized")
}

func TestGetTableDDL(t *testing.T) {
	s := newTestServer(&Deps{Tables: &mockTableService{tables: []services.TableInfo{
		{TableName: "users", TableSchema: "CREATE TABLE users (id INT)"},
	}}})

	resp := callTool(t, s, "get_table_ddl", map[string]any{"table": "Users"})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"table_name":"users","table_schema":"CREATE TABLE users (id INT)"}`, resp.text())

	resp = callTool(t, s, "get_table_ddl", map[string]any{"table": "missing"})
	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.text(), "not_found")
}

func TestTrainingData_FiltersByType(t *testing.T) {
	s := newTestServer(&Deps{Training: &mockTrainingService{items: []models.TrainingItem{
		{ID: "1", Type: models.TrainingDDL, Content: "CREATE TABLE users (id INT)"},
		{ID: "2", Type: models.TrainingSQL, Question: "用戶數", Content: "SELECT COUNT(*) FROM users"},
	}}})

	resp := callTool(t, s, "training_data", map[string]any{"type": "sql"})

	require.Nil(t, resp.Error)
	var out trainingDataResult
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "2", out.TrainingData[0].ID)
}

func TestHealthTool(t *testing.T) {
	s := newTestServer(&Deps{
		Health:  &mockHealthService{report: services.HealthReport{Status: services.HealthDegraded, VannaInitialized: true}},
		Version: `1.0.0-beta"test`,
	})

	resp := callTool(t, s, "health", nil)

	require.Nil(t, resp.Error)
	assert.JSONEq(t,
		`{"status":"degraded","database_connected":false,"vanna_initialized":true,"version":"1.0.0-beta\"test"}`,
		resp.text())
}
