package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const (
	sqlTemperature         = 0.0
	explanationTemperature = 0.3
	explanationMaxTokens   = 300
	defaultMaxExamples     = 10
)

// Config tunes prompt construction.
type Config struct {
	// Dialect names the target database in the system prompt, e.g. "MySQL".
	Dialect string
	// EmbeddingModel enables embedding-based ranking of training items.
	EmbeddingModel string
	// MaxExamples bounds the items of each kind placed in a prompt.
	MaxExamples int
}

// LLMGenerator implements Generator on top of a chat-completion client.
type LLMGenerator struct {
	client  llm.LLMClient
	store   TrainingStore
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator creates a generator. A nil client leaves it not ready;
// training data can still be stored and listed.
func NewLLMGenerator(client llm.LLMClient, store TrainingStore, cfg Config, m *metrics.Metrics, logger *zap.Logger) *LLMGenerator {
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = defaultMaxExamples
	}
	if cfg.Dialect == "" {
		cfg.Dialect = "MySQL"
	}
	return &LLMGenerator{
		client:  client,
		store:   store,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		logger:  logger.Named("generator"),
	}
}

func (g *LLMGenerator) Ready() bool {
	return g.client != nil && g.store != nil
}

// GenerateSQL builds a prompt from the training items most related to
// question and returns the model reply unchanged.
func (g *LLMGenerator) GenerateSQL(ctx context.Context, question string) (string, error) {
	if !g.Ready() {
		return "", ErrNotReady
	}

	items, err := g.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("load training data: %w", err)
	}

	ddl, docs, examples := g.relatedItems(ctx, question, items)
	system := buildSQLSystemPrompt(g.cfg.Dialect, ddl, docs)
	prompt := buildSQLPrompt(examples, question)

	start := time.Now()
	result, err := g.client.GenerateResponse(ctx, prompt, system, sqlTemperature, 0)
	g.metrics.ObserveLLM("generate_sql", start)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	g.logger.Debug("Generated SQL",
		zap.Int("ddl_items", len(ddl)),
		zap.Int("doc_items", len(docs)),
		zap.Int("examples", len(examples)),
		zap.String("reply", logging.TruncateString(result.Content, 500)))
	return result.Content, nil
}

func (g *LLMGenerator) GenerateExplanation(ctx context.Context, question, sqlQuery string) (string, error) {
	if g.client == nil {
		return "", ErrNotReady
	}

	prompt := fmt.Sprintf("用戶問題：%s\n\n執行的 SQL：\n%s\n\n請用一到兩句話說明這個查詢做了什麼。", question, sqlQuery)
	system := "你是一個專業的數據分析助手，會用繁體中文簡潔地解釋 SQL 查詢的用途與結果含義。"

	start := time.Now()
	result, err := g.client.GenerateResponse(ctx, prompt, system, explanationTemperature, explanationMaxTokens)
	g.metrics.ObserveLLM("explain", start)
	if err != nil {
		return "", fmt.Errorf("generate explanation: %w", err)
	}
	return strings.TrimSpace(result.Content), nil
}

// Train validates and stores item. SQL items need both a question and the SQL.
func (g *LLMGenerator) Train(ctx context.Context, item models.TrainingItem) (string, error) {
	if g.store == nil {
		return "", ErrNotReady
	}

	item.Content = strings.TrimSpace(item.Content)
	item.Question = strings.TrimSpace(item.Question)
	switch item.Type {
	case models.TrainingDDL, models.TrainingDocumentation:
		item.Question = ""
	case models.TrainingSQL:
		if item.Question == "" {
			return "", fmt.Errorf("%w: sql items need a question", ErrInvalidTrainingItem)
		}
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidTrainingItem, item.Type)
	}
	if item.Content == "" {
		return "", fmt.Errorf("%w: content is empty", ErrInvalidTrainingItem)
	}

	if item.ID == "" {
		item.ID = uuid.NewString() + "-" + string(item.Type)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = g.now().UTC()
	}

	stored := StoredItem{TrainingItem: item, Embedding: g.embed(ctx, searchText(StoredItem{TrainingItem: item}))}
	if err := g.store.Add(ctx, stored); err != nil {
		return "", err
	}

	g.logger.Info("Stored training item",
		zap.String("id", item.ID),
		zap.String("type", string(item.Type)),
		zap.Bool("embedded", stored.Embedding != nil))
	return item.ID, nil
}

func (g *LLMGenerator) TrainingData(ctx context.Context) ([]models.TrainingItem, error) {
	if g.store == nil {
		return nil, ErrNotReady
	}
	stored, err := g.store.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]models.TrainingItem, len(stored))
	for i, s := range stored {
		items[i] = s.TrainingItem
	}
	return items, nil
}

func (g *LLMGenerator) TrainingCount(ctx context.Context) (int, error) {
	if g.store == nil {
		return 0, ErrNotReady
	}
	return g.store.Count(ctx)
}

// embed returns nil when embeddings are disabled or fail; ranking then
// falls back to token overlap.
func (g *LLMGenerator) embed(ctx context.Context, text string) []float32 {
	if g.cfg.EmbeddingModel == "" || g.client == nil {
		return nil
	}

	start := time.Now()
	v, err := g.client.CreateEmbedding(ctx, text, g.cfg.EmbeddingModel)
	g.metrics.ObserveLLM("embed", start)
	if err != nil {
		g.logger.Warn("Embedding failed, using token overlap", zap.Error(err))
		return nil
	}
	return v
}

func (g *LLMGenerator) relatedItems(ctx context.Context, question string, items []StoredItem) (ddl, docs, examples []StoredItem) {
	byType := map[models.TrainingDataType][]StoredItem{}
	for _, item := range items {
		byType[item.Type] = append(byType[item.Type], item)
	}

	var queryEmbedding []float32
	if len(items) > 0 {
		queryEmbedding = g.embed(ctx, question)
	}

	n := g.cfg.MaxExamples
	return rankItems(byType[models.TrainingDDL], question, queryEmbedding, n),
		rankItems(byType[models.TrainingDocumentation], question, queryEmbedding, n),
		rankItems(byType[models.TrainingSQL], question, queryEmbedding, n)
}

func buildSQLSystemPrompt(dialect string, ddl, docs []StoredItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s expert. Please help to generate a SQL query to answer the question. ", dialect)
	b.WriteString("Your response should ONLY be based on the given context and follow the response guidelines and format instructions.\n")

	if len(ddl) > 0 {
		b.WriteString("\n===Tables\n")
		for _, item := range ddl {
			b.WriteString(item.Content)
			b.WriteString("\n\n")
		}
	}

	if len(docs) > 0 {
		b.WriteString("\n===Additional Context\n")
		for _, item := range docs {
			b.WriteString(item.Content)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("\n===Response Guidelines\n")
	b.WriteString("1. If the provided context is sufficient, please generate a valid SQL query without any explanations for the question.\n")
	b.WriteString("2. If the provided context is insufficient, please explain why it can't be generated.\n")
	b.WriteString("3. Please use the most relevant table(s).\n")
	b.WriteString("4. If the question has been asked and answered before, please repeat the answer exactly as it was given before.\n")
	fmt.Fprintf(&b, "5. Ensure that the output SQL is %s-compliant and executable, and free of syntax errors.\n", dialect)
	return b.String()
}

func buildSQLPrompt(examples []StoredItem, question string) string {
	var b strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&b, "Question: %s\nSQL:\n```sql\n%s\n```\n\n", ex.Question, ex.Content)
	}
	fmt.Fprintf(&b, "Question: %s\nSQL:", question)
	return b.String()
}
