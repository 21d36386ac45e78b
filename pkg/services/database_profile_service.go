package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
)

const (
	maxProfileSuggestions = 10
	profileConcurrency    = 4
	sampleColumnCount     = 5

	tableAnalysisTemperature = 0.3
	tableAnalysisMaxTokens   = 2000
	tableAnalysisSystem      = "你是一個專業的數據庫分析專家，擅長識別用戶關心的數據表和生成合適的中文名稱。只返回有效的 JSON 格式。"
)

var (
	nameColumnHints  = []string{"name", "title", "名稱", "標題"}
	dateColumnHints  = []string{"date", "time", "created", "updated", "日期", "時間"}
	countColumnHints = []string{"count", "quantity", "amount", "數量", "金額"}
)

// QuestionSuggestion is a starter question for an unfamiliar database.
type QuestionSuggestion struct {
	Question    string `json:"question"`
	Description string `json:"description"`
}

// DatabaseQuestions is the profile of a database reached by connection string.
type DatabaseQuestions struct {
	Suggestions  []QuestionSuggestion `json:"suggestions"`
	Count        int                  `json:"count"`
	DatabaseName string               `json:"database_name"`
	TableCount   int                  `json:"table_count"`
}

// DatabaseProfileService suggests questions for a database the user points at.
type DatabaseProfileService interface {
	// Questions connects to connStr, inspects its tables and proposes up to
	// ten questions. Unparseable strings yield apperrors.ErrInvalidInput.
	Questions(ctx context.Context, connStr string) (*DatabaseQuestions, error)
}

type databaseProfileService struct {
	connections *datasource.ConnectionManager
	client      llm.LLMClient
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewDatabaseProfileService creates a profile service. A nil client keeps
// every table under its raw name.
func NewDatabaseProfileService(connections *datasource.ConnectionManager, client llm.LLMClient, m *metrics.Metrics, logger *zap.Logger) DatabaseProfileService {
	return &databaseProfileService{
		connections: connections,
		client:      client,
		metrics:     m,
		logger:      logger.Named("profile"),
	}
}

var _ DatabaseProfileService = (*databaseProfileService)(nil)

// tableProfile is one table with the column names used for suggestions.
type tableProfile struct {
	Name    string
	Columns []string
}

// tableAnalysis is the model's verdict on which tables matter to end users.
type tableAnalysis struct {
	FilteredTables []string          `json:"filtered_tables"`
	TableNamesCN   map[string]string `json:"-"`
}

type tableAnalysisReply struct {
	FilteredTables []string                           `json:"filtered_tables"`
	TableNamesCN   map[string]jsonutil.FlexibleString `json:"table_names_cn"`
}

func (s *databaseProfileService) Questions(ctx context.Context, connStr string) (*DatabaseQuestions, error) {
	cfg, err := datasource.ParseConnectionString(connStr)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Profiling database", zap.String("target", logging.SanitizeConnectionString(connStr)))

	ds, err := s.connections.Get(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Name(), err)
	}

	profiles, err := describeTables(ctx, ds)
	if err != nil {
		return nil, err
	}

	analysis := s.analyzeTables(ctx, profiles)
	keep := make(map[string]bool, len(analysis.FilteredTables))
	for _, name := range analysis.FilteredTables {
		keep[name] = true
	}
	var filtered []tableProfile
	for _, p := range profiles {
		if keep[p.Name] {
			filtered = append(filtered, p)
		}
	}
	s.logger.Info("Filtered tables",
		zap.Int("tables", len(profiles)),
		zap.Int("kept", len(filtered)))

	counts := s.countRows(ctx, ds, filtered)
	suggestions := suggestQuestions(filtered, analysis.TableNamesCN, counts)

	return &DatabaseQuestions{
		Suggestions:  suggestions,
		Count:        len(suggestions),
		DatabaseName: cfg.Name(),
		TableCount:   len(profiles),
	}, nil
}

func describeTables(ctx context.Context, ds datasource.Datasource) ([]tableProfile, error) {
	tables, err := ds.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	profiles := make([]tableProfile, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileConcurrency)
	for i, t := range tables {
		g.Go(func() error {
			columns, err := ds.DescribeTable(gctx, t.Name)
			if err != nil {
				return fmt.Errorf("failed to describe table %s: %w", t.Name, err)
			}
			names := make([]string, 0, len(columns))
			for _, c := range columns {
				if c.Name != "" {
					names = append(names, c.Name)
				}
			}
			profiles[i] = tableProfile{Name: t.Name, Columns: names}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// analyzeTables asks the model which tables end users care about and what
// to call them. Any failure keeps every table under its raw name.
func (s *databaseProfileService) analyzeTables(ctx context.Context, profiles []tableProfile) tableAnalysis {
	fallback := tableAnalysis{TableNamesCN: make(map[string]string, len(profiles))}
	for _, p := range profiles {
		fallback.FilteredTables = append(fallback.FilteredTables, p.Name)
		fallback.TableNamesCN[p.Name] = p.Name
	}
	if s.client == nil || len(profiles) == 0 {
		return fallback
	}

	return Attempt(ctx, s.logger, "analyze_tables", fallback, func(ctx context.Context) (tableAnalysis, error) {
		prompt, err := tableAnalysisPrompt(profiles)
		if err != nil {
			return tableAnalysis{}, err
		}

		start := time.Now()
		result, err := s.client.GenerateResponse(ctx, prompt, tableAnalysisSystem, tableAnalysisTemperature, tableAnalysisMaxTokens)
		s.metrics.ObserveLLM("analyze_tables", start)
		if err != nil {
			return tableAnalysis{}, err
		}

		reply, err := llm.ParseJSONResponse[tableAnalysisReply](result.Content)
		if err != nil {
			return tableAnalysis{}, fmt.Errorf("parse table analysis: %w", err)
		}
		return tableAnalysis{
			FilteredTables: reply.FilteredTables,
			TableNamesCN:   jsonutil.StringMap(reply.TableNamesCN),
		}, nil
	})
}

func tableAnalysisPrompt(profiles []tableProfile) (string, error) {
	type summary struct {
		TableName     string   `json:"table_name"`
		ColumnCount   int      `json:"column_count"`
		SampleColumns []string `json:"sample_columns"`
	}
	summaries := make([]summary, len(profiles))
	for i, p := range profiles {
		summaries[i] = summary{
			TableName:     p.Name,
			ColumnCount:   len(p.Columns),
			SampleColumns: p.Columns[:min(sampleColumnCount, len(p.Columns))],
		}
	}
	listing, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`你是一個數據庫分析專家。請分析以下數據庫表列表，判斷哪些表是終端用戶真正想查詢和查看的數據，並為每個表生成對應的中文名稱。

表列表：
%s

判斷標準：
1. 過濾掉系統表、配置表、中間表（如以 App、Config、Setting 開頭的表通常是配置表，不適合終端用戶查詢）
2. 過濾掉關聯映射表（如 XxxTagMap、XxxPermission 等中間表）
3. 保留業務數據表（如用戶數據、內容數據、統計數據等）
4. 保留用戶真正關心的核心業務表

請返回 JSON 格式：
{
  "filtered_tables": ["table1", "table2", ...],  // 過濾後應該保留的表名列表
  "table_names_cn": {
    "table1": "中文名稱1",
    "table2": "中文名稱2",
    ...
  }  // 所有表的中文名稱映射（包括被過濾的表也給出中文名，以備參考）
}

只返回 JSON，不要其他說明文字。`, listing), nil
}

// countRows counts rows per table with bounded concurrency. Failed counts are 0.
func (s *databaseProfileService) countRows(ctx context.Context, ds datasource.Datasource, profiles []tableProfile) map[string]int64 {
	counts := make([]int64, len(profiles))
	var g errgroup.Group
	g.SetLimit(profileConcurrency)
	for i, p := range profiles {
		g.Go(func() error {
			n, err := ds.CountRows(ctx, p.Name)
			if err != nil {
				s.logger.Warn("Failed to count rows", zap.String("table", p.Name), zap.Error(err))
				return nil
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait()

	byTable := make(map[string]int64, len(profiles))
	for i, p := range profiles {
		byTable[p.Name] = counts[i]
	}
	return byTable
}

// suggestQuestions derives starter questions from column names. Tables
// known to be empty are skipped.
func suggestQuestions(profiles []tableProfile, localized map[string]string, counts map[string]int64) []QuestionSuggestion {
	label := func(table string) string {
		if name, ok := localized[table]; ok && name != "" {
			return name
		}
		return table
	}

	suggestions := []QuestionSuggestion{}
	var withData []string
	for _, p := range profiles {
		if n, ok := counts[p.Name]; ok && n == 0 {
			continue
		}
		withData = append(withData, p.Name)
		if len(p.Columns) == 0 {
			continue
		}

		cn := label(p.Name)
		nameCols := columnsMatching(p.Columns, nameColumnHints)
		dateCols := columnsMatching(p.Columns, dateColumnHints)
		countCols := columnsMatching(p.Columns, countColumnHints)

		suggestions = append(suggestions, QuestionSuggestion{
			Question:    fmt.Sprintf("顯示所有%s的資料", cn),
			Description: fmt.Sprintf("查詢%s表中的所有記錄", p.Name),
		})
		if len(nameCols) > 0 {
			suggestions = append(suggestions, QuestionSuggestion{
				Question:    fmt.Sprintf("顯示所有%s的%s", cn, nameCols[0]),
				Description: fmt.Sprintf("查詢%s表中的%s字段", p.Name, nameCols[0]),
			})
		}
		if len(dateCols) > 0 {
			suggestions = append(suggestions, QuestionSuggestion{
				Question:    fmt.Sprintf("查詢最近一週的%s記錄", cn),
				Description: fmt.Sprintf("根據%s查詢最近一週的%s記錄", dateCols[0], p.Name),
			})
		}
		if len(countCols) > 0 {
			suggestions = append(suggestions, QuestionSuggestion{
				Question:    fmt.Sprintf("統計%s的%s總和", cn, countCols[0]),
				Description: fmt.Sprintf("計算%s表中%s的總和", p.Name, countCols[0]),
			})
			if len(nameCols) > 0 {
				suggestions = append(suggestions, QuestionSuggestion{
					Question:    fmt.Sprintf("按%s分組統計%s", nameCols[0], cn),
					Description: fmt.Sprintf("按%s分組統計%s表", nameCols[0], p.Name),
				})
			}
		}
	}

	if len(withData) >= 2 {
		suggestions = append(suggestions, QuestionSuggestion{
			Question:    fmt.Sprintf("查詢%s和%s的關聯資料", label(withData[0]), label(withData[1])),
			Description: "關聯查詢兩個表的數據",
		})
	}

	if len(suggestions) > maxProfileSuggestions {
		suggestions = suggestions[:maxProfileSuggestions]
	}
	return suggestions
}

func columnsMatching(columns, hints []string) []string {
	var out []string
	for _, c := range columns {
		lower := strings.ToLower(c)
		for _, h := range hints {
			if strings.Contains(lower, h) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
