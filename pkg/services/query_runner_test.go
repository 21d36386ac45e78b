package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

func TestClassifyExecutionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{name: "mysql syntax", err: errors.New("Error 1064 (42000): You have an error in your SQL syntax"), expected: ErrorClassSyntax},
		{name: "postgres syntax", err: errors.New(`ERROR: syntax error at or near "FORM"`), expected: ErrorClassSyntax},
		{name: "mysql missing table", err: errors.New("Error 1146 (42S02): Table 'shop.userz' doesn't exist"), expected: ErrorClassMissingTable},
		{name: "postgres missing table", err: errors.New(`ERROR: relation "userz" does not exist`), expected: ErrorClassMissingTable},
		{name: "sqlite missing table", err: errors.New("no such table: userz"), expected: ErrorClassMissingTable},
		{name: "mssql missing table", err: errors.New("mssql: Invalid object name 'userz'."), expected: ErrorClassMissingTable},
		{name: "mysql missing column", err: errors.New("Error 1054 (42S22): Unknown column 'nam' in 'field list'"), expected: ErrorClassMissingColumn},
		{name: "postgres missing column", err: errors.New(`ERROR: column "nam" does not exist`), expected: ErrorClassMissingColumn},
		{name: "permission", err: errors.New("Error 1142 (42000): SELECT command denied to user"), expected: ErrorClassPermission},
		{name: "access denied", err: errors.New("Access denied for user 'bob'@'localhost'"), expected: ErrorClassPermission},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"), expected: ErrorClassConnection},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), expected: ErrorClassConnection},
		{name: "anything else", err: errors.New("division by zero"), expected: ErrorClassGeneric},
		{name: "nil", err: nil, expected: ErrorClassGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyExecutionError(tt.err))
		})
	}
}

func TestExecutionError_Messages(t *testing.T) {
	cause := errors.New("near FORM")

	tests := []struct {
		class    ErrorClass
		contains []string
	}{
		{class: ErrorClassSyntax, contains: []string{"生成的 SQL 語句有語法錯誤。", "SELECT x", "錯誤詳情: near FORM"}},
		{class: ErrorClassMissingTable, contains: []string{"查詢的表不存在。", "請檢查表名或數據庫配置。"}},
		{class: ErrorClassMissingColumn, contains: []string{"查詢的列不存在。", "請檢查列名或表結構。"}},
		{class: ErrorClassPermission, contains: []string{"數據庫訪問權限不足。"}},
		{class: ErrorClassConnection, contains: []string{"無法連接到數據庫。"}},
		{class: ErrorClassGeneric, contains: []string{"SQL 執行失敗。", "錯誤詳情: near FORM"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			msg := (&ExecutionError{Class: tt.class, SQL: "SELECT x", Cause: cause}).Error()
			for _, want := range tt.contains {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestExecutionError_TruncatesDetail(t *testing.T) {
	cause := errors.New(strings.Repeat("錯", 400))
	msg := (&ExecutionError{Class: ErrorClassGeneric, SQL: "SELECT 1", Cause: cause}).Error()

	assert.True(t, strings.HasSuffix(msg, "錯誤詳情: "+strings.Repeat("錯", 300)))
	assert.ErrorIs(t, &ExecutionError{Cause: cause}, cause)
}

func TestQueryRunner_Run(t *testing.T) {
	ds := datasource.NewMockDatasource("users").WithRows([]string{"id"}, []models.Row{{"id": int64(1)}})
	runner := NewQueryRunner(nil, zap.NewNop())

	result, err := runner.Run(context.Background(), ds, "SELECT id FROM users;")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, []string{"SELECT id FROM users"}, ds.Queries)
}

func TestQueryRunner_RejectsMultipleStatements(t *testing.T) {
	ds := datasource.NewMockDatasource("users")
	m := metrics.New()
	core, logs := observer.New(zapcore.WarnLevel)
	runner := NewQueryRunner(m, zap.New(core))

	_, err := runner.Run(context.Background(), ds, "SELECT 1; DROP TABLE users")

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrorClassGeneric, execErr.Class)
	assert.ErrorIs(t, err, sqlutil.ErrMultipleStatements)
	assert.Equal(t, 0, ds.QueryCount())

	rejected := logs.FilterLoggerName("security_audit").FilterMessage("Statement rejected")
	assert.Equal(t, 1, rejected.Len())
}

func TestQueryRunner_ClassifiesDriverErrors(t *testing.T) {
	ds := datasource.NewMockDatasource("users")
	ds.QueryFunc = func(ctx context.Context, sql string) (*datasource.QueryExecutionResult, error) {
		return nil, errors.New("Error 1054 (42S22): Unknown column 'nam' in 'field list'")
	}

	_, err := NewQueryRunner(nil, zap.NewNop()).Run(context.Background(), ds, "SELECT nam FROM users")

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrorClassMissingColumn, execErr.Class)
	assert.Equal(t, "SELECT nam FROM users", execErr.SQL)
}

func TestQueryRunner_PassesCancellationThrough(t *testing.T) {
	ds := datasource.NewMockDatasource("users")
	ds.QueryFunc = func(ctx context.Context, sql string) (*datasource.QueryExecutionResult, error) {
		return nil, context.Canceled
	}

	_, err := NewQueryRunner(nil, zap.NewNop()).Run(context.Background(), ds, "SELECT 1")

	var execErr *ExecutionError
	assert.False(t, errors.As(err, &execErr))
	assert.ErrorIs(t, err, context.Canceled)
}
