package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

// ErrorClass groups database failures by what the user can do about them.
type ErrorClass string

const (
	ErrorClassSyntax        ErrorClass = "syntax"
	ErrorClassMissingTable  ErrorClass = "missing_table"
	ErrorClassMissingColumn ErrorClass = "missing_column"
	ErrorClassPermission    ErrorClass = "permission"
	ErrorClassConnection    ErrorClass = "connection"
	ErrorClassGeneric       ErrorClass = "generic"
)

const errorDetailRunes = 300

// ExecutionError is a failed statement. Error returns the message shown to the user.
type ExecutionError struct {
	Class ErrorClass
	SQL   string
	Cause error
}

func (e *ExecutionError) Error() string {
	detail := ""
	if e.Cause != nil {
		detail = truncateRunes(e.Cause.Error(), errorDetailRunes)
	}
	switch e.Class {
	case ErrorClassSyntax:
		return fmt.Sprintf("生成的 SQL 語句有語法錯誤。\n\n生成的 SQL:\n%s\n\n錯誤詳情: %s", e.SQL, detail)
	case ErrorClassMissingTable:
		return fmt.Sprintf("查詢的表不存在。\n\n生成的 SQL:\n%s\n\n請檢查表名或數據庫配置。", e.SQL)
	case ErrorClassMissingColumn:
		return fmt.Sprintf("查詢的列不存在。\n\n生成的 SQL:\n%s\n\n請檢查列名或表結構。", e.SQL)
	case ErrorClassPermission:
		return fmt.Sprintf("數據庫訪問權限不足。請檢查數據庫用戶權限。\n\n生成的 SQL:\n%s", e.SQL)
	case ErrorClassConnection:
		return fmt.Sprintf("無法連接到數據庫。請檢查數據庫配置和連接狀態。\n\n生成的 SQL:\n%s", e.SQL)
	default:
		return fmt.Sprintf("SQL 執行失敗。\n\n生成的 SQL:\n%s\n\n錯誤詳情: %s", e.SQL, detail)
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// classRule matches when any of its alternatives matches. An alternative
// matches when the error text contains all of its parts.
type classRule struct {
	class ErrorClass
	any   [][]string
}

var executionErrorRules = []classRule{
	{ErrorClassSyntax, [][]string{{"sql syntax"}, {"1064"}, {"syntax error"}}},
	{ErrorClassMissingTable, [][]string{{"doesn't exist", "table"}, {"1146"}, {"no such table"}, {"does not exist", "relation"}, {"invalid object name"}}},
	{ErrorClassMissingColumn, [][]string{{"unknown column"}, {"1054"}, {"no such column"}, {"column", "does not exist"}, {"invalid column name"}}},
	{ErrorClassPermission, [][]string{{"access denied"}, {"1045"}, {"1142"}, {"permission denied"}}},
	{ErrorClassConnection, [][]string{{"connection refused"}, {"can't connect"}, {"2003"}, {"2006"}, {"2013"}, {"bad connection"}, {"timeout"}}},
}

// ClassifyExecutionError maps a driver error onto an ErrorClass.
func ClassifyExecutionError(err error) ErrorClass {
	if err == nil {
		return ErrorClassGeneric
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassConnection
	}

	text := strings.ToLower(err.Error())
	for _, rule := range executionErrorRules {
		for _, parts := range rule.any {
			if containsAll(text, parts) {
				return rule.class
			}
		}
	}
	return ErrorClassGeneric
}

func containsAll(text string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

// QueryRunner executes generated statements against the datasource.
type QueryRunner interface {
	// Run executes sqlText. Failures are returned as *ExecutionError.
	Run(ctx context.Context, ds datasource.Datasource, sqlText string) (*datasource.QueryExecutionResult, error)
}

type queryRunner struct {
	metrics *metrics.Metrics
	audit   *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewQueryRunner creates a query runner.
func NewQueryRunner(m *metrics.Metrics, logger *zap.Logger) QueryRunner {
	return &queryRunner{
		metrics: m,
		audit:   audit.NewSecurityAuditor(logger),
		logger:  logger.Named("query-runner"),
	}
}

var _ QueryRunner = (*queryRunner)(nil)

func (r *queryRunner) Run(ctx context.Context, ds datasource.Datasource, sqlText string) (*datasource.QueryExecutionResult, error) {
	validated := sqlutil.ValidateAndNormalize(sqlText)
	if validated.Error != nil {
		r.audit.LogStatementRejected(ctx, logging.SanitizeQuery(sqlText), validated.Error.Error())
		return nil, r.fail(ErrorClassGeneric, sqlText, validated.Error)
	}

	start := time.Now()
	result, err := ds.Query(ctx, validated.NormalizedSQL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, r.fail(ClassifyExecutionError(err), sqlText, err)
	}

	r.audit.LogQueryExecution(ctx, logging.SanitizeQuery(validated.NormalizedSQL), result.RowCount, time.Since(start))
	return result, nil
}

func (r *queryRunner) fail(class ErrorClass, sqlText string, cause error) *ExecutionError {
	r.metrics.ExecutionError(string(class))
	r.logger.Error("Query failed",
		zap.String("class", string(class)),
		zap.String("sql", logging.SanitizeQuery(sqlText)),
		zap.String("error", logging.SanitizeError(cause)))
	return &ExecutionError{Class: class, SQL: sqlText, Cause: cause}
}
