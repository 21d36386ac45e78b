package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/rules"
)

const (
	maxRelevantTables  = 15
	fallbackTableCount = 5
	maxDDLLines        = 15
)

var (
	cjkKeywordPattern   = regexp.MustCompile(`[\x{4E00}-\x{9FFF}]{2,}`)
	asciiKeywordPattern = regexp.MustCompile(`[a-z]{3,}`)
)

// SchemaResolver selects the tables a question is about and reads their DDL.
type SchemaResolver interface {
	// Resolve lists the live tables and picks the relevant ones for question.
	// Listing failures yield an empty snapshot rather than an error.
	Resolve(ctx context.Context, ds datasource.Datasource, question string) *models.SchemaSnapshot
}

type schemaResolver struct {
	corePattern  *regexp.Regexp
	translations map[string]string
	logger       *zap.Logger
}

// NewSchemaResolver creates a resolver driven by the synonym and prefix tables in r.
func NewSchemaResolver(r *rules.Rules, logger *zap.Logger) SchemaResolver {
	quoted := make([]string, 0, len(r.CorePrefixes))
	for _, p := range r.CorePrefixes {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(p)))
	}
	var core *regexp.Regexp
	if len(quoted) > 0 {
		core = regexp.MustCompile("(" + strings.Join(quoted, "|") + ")")
	}

	translations := make(map[string]string, len(r.Synonyms))
	for _, s := range r.Synonyms {
		translations[s.Term] = strings.ToLower(s.Translation)
	}

	return &schemaResolver{
		corePattern:  core,
		translations: translations,
		logger:       logger.Named("schema"),
	}
}

var _ SchemaResolver = (*schemaResolver)(nil)

func (s *schemaResolver) Resolve(ctx context.Context, ds datasource.Datasource, question string) *models.SchemaSnapshot {
	snapshot := &models.SchemaSnapshot{DDLByTable: map[string]string{}}

	tables, err := ds.ListTables(ctx)
	if err != nil {
		s.logger.Warn("Failed to list tables", zap.Error(err))
		return snapshot
	}
	snapshot.TableNames = datasource.TableNames(tables)
	if len(snapshot.TableNames) == 0 {
		return snapshot
	}

	relevant := s.relevantTables(snapshot.TableNames, question)
	if len(relevant) == 0 {
		relevant = firstN(snapshot.TableNames, fallbackTableCount)
		s.logger.Debug("No table matched the question, using the first tables", zap.Strings("tables", relevant))
	} else {
		relevant = firstN(relevant, maxRelevantTables)
	}
	snapshot.RelevantTables = relevant

	for _, table := range relevant {
		ddl, err := ds.TableDDL(ctx, table)
		if err != nil {
			s.logger.Warn("Failed to read table DDL", zap.String("table", table), zap.Error(err))
			snapshot.DDLByTable[table] = ""
			continue
		}
		if trimmed := TrimDDL(ddl); trimmed != "" {
			snapshot.DDLByTable[table] = trimmed
		}
	}

	s.logger.Debug("Resolved schema",
		zap.Int("table_count", len(snapshot.TableNames)),
		zap.Strings("relevant", relevant))
	return snapshot
}

func (s *schemaResolver) keywords(questionLower string) []string {
	cjk := cjkKeywordPattern.FindAllString(questionLower, -1)
	keywords := append([]string{}, cjk...)
	keywords = append(keywords, asciiKeywordPattern.FindAllString(questionLower, -1)...)
	for _, word := range cjk {
		if t, ok := s.translations[word]; ok {
			keywords = append(keywords, t)
		}
	}
	return keywords
}

func (s *schemaResolver) relevantTables(tables []string, question string) []string {
	questionLower := strings.ToLower(question)
	keywords := s.keywords(questionLower)

	var relevant []string
	for _, table := range tables {
		if s.isRelevant(strings.ToLower(table), questionLower, keywords) {
			relevant = append(relevant, table)
		}
	}
	return relevant
}

func (s *schemaResolver) isRelevant(table, questionLower string, keywords []string) bool {
	if strings.Contains(questionLower, table) {
		return true
	}

	compact := strings.NewReplacer("_", "", " ", "").Replace(table)
	for _, kw := range keywords {
		if strings.Contains(table, kw) {
			return true
		}
		if strings.Contains(strings.ReplaceAll(kw, " ", ""), compact) {
			return true
		}
		if utf8.RuneCountInString(kw) >= 3 && strings.HasPrefix(table, kw) {
			return true
		}
	}

	for _, part := range s.coreParts(table) {
		if utf8.RuneCountInString(part) <= 2 {
			continue
		}
		if strings.Contains(questionLower, part) {
			return true
		}
		for _, kw := range keywords {
			if strings.Contains(kw, part) || strings.Contains(part, kw) {
				return true
			}
		}
	}
	return false
}

// coreParts splits a lowercase table name around its known prefixes. The
// prefixes themselves are kept as parts.
func (s *schemaResolver) coreParts(table string) []string {
	if s.corePattern == nil {
		return []string{table}
	}
	var parts []string
	last := 0
	for _, loc := range s.corePattern.FindAllStringIndex(table, -1) {
		parts = append(parts, table[last:loc[0]], table[loc[0]:loc[1]])
		last = loc[1]
	}
	return append(parts, table[last:])
}

// TrimDDL keeps the lines of a CREATE TABLE statement that name the table,
// its columns and its primary key.
func TrimDDL(ddl string) string {
	var lines []string
	for _, line := range strings.Split(ddl, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	var kept []string
	for _, line := range lines {
		if strings.Contains(strings.ToUpper(line), "CREATE TABLE") ||
			strings.HasPrefix(line, "`") ||
			strings.HasPrefix(line, `"`) ||
			strings.HasPrefix(line, "PRIMARY KEY") {
			kept = append(kept, line)
			if len(kept) >= maxDDLLines {
				break
			}
		}
	}
	if len(kept) == 0 {
		return ""
	}

	trimmed := strings.Join(kept, "\n")
	if len(lines) > maxDDLLines {
		trimmed += "\n..."
	}
	return trimmed
}

// BuildGenerationPrompt prefixes question with the live table list, the
// relevant DDL and the instructions that keep the generator on real tables.
func BuildGenerationPrompt(snapshot *models.SchemaSnapshot, question string) string {
	if snapshot == nil || len(snapshot.TableNames) == 0 {
		return question
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\n資料庫中實際存在的表名列表：%s", strings.Join(snapshot.TableNames, ", "))

	var ddlParts strings.Builder
	for _, table := range snapshot.RelevantTables {
		ddl, ok := snapshot.DDLByTable[table]
		switch {
		case !ok:
		case ddl == "":
			fmt.Fprintf(&ddlParts, "\n表 %s 存在於資料庫中", table)
		default:
			fmt.Fprintf(&ddlParts, "\n表 %s 的結構：\n%s", table, ddl)
		}
	}
	if ddlParts.Len() > 0 {
		b.WriteString("\n")
		b.WriteString(ddlParts.String())
	}

	b.WriteString("\n\n重要提示：\n")
	b.WriteString("1. 上述表名列表是資料庫中實際存在的所有表\n")
	b.WriteString("2. 如果問題中提到的表名在上述列表中，必須使用列表中的確切表名\n")
	b.WriteString("3. 請根據提供的表結構信息（DDL）生成 SQL 查詢\n")
	b.WriteString("4. 如果問題中提到「Notion數據庫」或「Notion」，請查找列表中以 Notion 開頭的表（如 NotionDatabase, NotionPage 等）\n")
	b.WriteString("5. 忽略任何訓練數據中的舊表信息，只使用上述提供的表信息\n")
	b.WriteString("\n\n")
	b.WriteString(question)
	return b.String()
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
