package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/generator"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/rules"
	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

const (
	msgGeneratorUnreachable = "無法生成 SQL 查詢。請檢查 OpenAI API 配置和網絡連接。"
	msgGeneratorEmpty       = "無法生成 SQL 查詢。可能原因：1) 模型尚未訓練 2) 問題不清楚 3) 沒有相關的表結構信息"
	msgTableNotFound        = "無法找到您提到的資料表。"
	msgInvalidSQL           = "無法生成有效的 SQL 查詢。"
	msgNotTrained           = "\n可能的原因：模型尚未訓練，請先訓練模型。"
	msgRephrase             = "\n請嘗試更清楚地描述您的問題，或使用資料庫中實際存在的表名。"

	notFoundTableListSize = 10
	generatorErrorRunes   = 200
)

// TurnError is a failure the user sees as the answer to their question.
// SQL is set when the failure happened after a statement was produced.
type TurnError struct {
	Message string
	SQL     string
}

func (e *TurnError) Error() string {
	return e.Message
}

// SQLGenerator turns a prompt into a single statement that only names tables
// present in the snapshot.
type SQLGenerator interface {
	// Generate returns corrected SQL or a *TurnError describing why none exists.
	Generate(ctx context.Context, prompt string, snapshot *models.SchemaSnapshot) (string, error)
}

type sqlGenerator struct {
	generator generator.Generator
	rules     *rules.Rules
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSQLGenerator wraps gen with output validation and table-name correction.
func NewSQLGenerator(gen generator.Generator, r *rules.Rules, m *metrics.Metrics, logger *zap.Logger) SQLGenerator {
	return &sqlGenerator{
		generator: gen,
		rules:     r,
		metrics:   m,
		logger:    logger.Named("sql-generator"),
	}
}

var _ SQLGenerator = (*sqlGenerator)(nil)

func (g *sqlGenerator) Generate(ctx context.Context, prompt string, snapshot *models.SchemaSnapshot) (string, error) {
	raw, err := g.generator.GenerateSQL(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.logger.Error("SQL generation failed", zap.String("error", logging.SanitizeError(err)))
		return "", &TurnError{Message: generatorErrorMessage(err)}
	}

	sqlText := sqlutil.ExtractFencedSQL(raw)
	if sqlText == "" {
		g.logger.Warn("Generator returned no SQL")
		return "", &TurnError{Message: msgGeneratorEmpty}
	}

	if !sqlutil.LooksLikeSQL(sqlText, g.rules.SQLKeywords) {
		g.logger.Warn("Generator reply is not SQL", zap.String("reply", logging.TruncateString(sqlText, 200)))
		return "", &TurnError{Message: g.notSQLMessage(ctx, sqlText, snapshot)}
	}

	var tables []string
	if snapshot != nil {
		tables = snapshot.TableNames
	}
	if len(tables) == 0 {
		return sqlText, nil
	}

	corrected := sqlutil.CorrectTableNames(sqlText, tables, g.rules.TableSkipKeywords)
	if n := len(corrected.Corrections); n > 0 {
		g.metrics.TableCorrections(n)
		for _, c := range corrected.Corrections {
			g.logger.Info("Corrected table name", zap.String("from", c.From), zap.String("to", c.To))
		}
	}
	if len(corrected.Unresolved) > 0 {
		g.logger.Warn("SQL references unknown tables", zap.Strings("tables", corrected.Unresolved))
	}
	return corrected.SQL, nil
}

func generatorErrorMessage(err error) string {
	text := err.Error()
	lower := strings.ToLower(text)
	if strings.Contains(lower, "api") || strings.Contains(lower, "openai") {
		return msgGeneratorUnreachable
	}
	return "無法生成 SQL 查詢。錯誤: " + truncateRunes(text, generatorErrorRunes)
}

// notSQLMessage explains a reply that holds prose instead of a statement.
func (g *sqlGenerator) notSQLMessage(ctx context.Context, reply string, snapshot *models.SchemaSnapshot) string {
	if rules.ContainsAny(reply, g.rules.NotFoundMarkers) {
		var b strings.Builder
		b.WriteString(msgTableNotFound)
		if snapshot != nil && len(snapshot.TableNames) > 0 {
			listed := strings.Join(firstN(snapshot.TableNames, notFoundTableListSize), ", ")
			if len(snapshot.TableNames) > notFoundTableListSize {
				listed += fmt.Sprintf(" 等共 %d 個表", len(snapshot.TableNames))
			}
			b.WriteString("\n\n可用的資料表包括：" + listed)
			b.WriteString("\n請使用上述實際存在的表名重新提問。")
		}
		return b.String()
	}

	count, err := g.generator.TrainingCount(ctx)
	if err != nil {
		g.logger.Warn("Failed to count training data", zap.Error(err))
		return msgInvalidSQL + msgRephrase
	}
	if count == 0 {
		return msgInvalidSQL + msgNotTrained
	}
	return msgInvalidSQL + msgRephrase
}
