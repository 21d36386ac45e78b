package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/generator"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/render"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/rules"
)

const (
	// MsgNotInitialized is shown while the generator or database is unavailable.
	MsgNotInitialized = "Vanna AI 服務尚未初始化，請稍後再試"

	msgNoPreviousResult = "無法生成圖表，因為沒有找到之前的查詢結果。請先執行一個數據查詢，然後再請求圖表。"
	msgRecharted        = "已根據您的要求重新生成圖表"
	msgDefaultExplain   = "查詢執行成功"
	errorContentPrefix  = "錯誤："
)

// ChatRequest is one question asked in a conversation.
type ChatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatAnswer is the outcome of a turn, collected for non-streaming callers.
type ChatAnswer struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Result         *models.QueryResult `json:"result"`
	// Content is the assistant message: explanation plus rendered result.
	Content     string   `json:"content"`
	Suggestions []string `json:"suggestions"`
}

// ChatService answers questions about the database.
type ChatService interface {
	// Stream runs one turn and writes its frames to events. The caller owns
	// events and closes it after Stream returns. The returned error is only
	// set when the turn could not run at all (invalid input, cancellation);
	// failed turns are reported in the stream.
	Stream(ctx context.Context, req ChatRequest, events chan<- models.StreamEvent) error

	// Ask runs one turn without pacing and returns the collected answer.
	Ask(ctx context.Context, req ChatRequest) (*ChatAnswer, error)
}

// ChatDeps holds the collaborators of the chat pipeline.
type ChatDeps struct {
	Generator     generator.Generator
	Datasources   DatasourceProvider
	Conversations ConversationService
	Expander      QuestionExpander
	Resolver      SchemaResolver
	SQL           SQLGenerator
	Runner        QueryRunner
	Suggestions   SuggestionGenerator
	Renderer      *render.Renderer
	Rules         *rules.Rules
	Pacing        StreamPacing
	Metrics       *metrics.Metrics
}

type chatService struct {
	ChatDeps
	classifier *IntentClassifier
	logger     *zap.Logger
}

// NewChatService wires the chat pipeline.
func NewChatService(deps ChatDeps, logger *zap.Logger) ChatService {
	return &chatService{
		ChatDeps:   deps,
		classifier: NewIntentClassifier(deps.Rules),
		logger:     logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) Stream(ctx context.Context, req ChatRequest, events chan<- models.StreamEvent) error {
	_, err := s.run(ctx, req, NewStreamEmitter(ctx, events, s.Pacing))
	return err
}

func (s *chatService) Ask(ctx context.Context, req ChatRequest) (*ChatAnswer, error) {
	return s.run(ctx, req, NewStreamEmitter(ctx, nil, s.Pacing.Unpaced()))
}

// run executes one turn. The answer is populated even when the turn failed.
func (s *chatService) run(ctx context.Context, req ChatRequest, em *StreamEmitter) (answer *ChatAnswer, err error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", apperrors.ErrInvalidInput)
	}

	answer = &ChatAnswer{ConversationID: req.ConversationID, Suggestions: []string{}}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Chat turn panicked", zap.Any("panic", r), zap.Stack("stack"))
			msg := fmt.Sprintf("處理請求時發生錯誤: %v", r)
			answer.Result = models.NewErrorResult("", msg)
			s.Metrics.ChatTurn(metrics.OutcomeError)
			err = em.Fail(msg)
		}
	}()

	ds, ok := s.ready(ctx)
	if !ok {
		answer.Result = models.NewErrorResult("", MsgNotInitialized)
		s.Metrics.ChatTurn(metrics.OutcomeError)
		return answer, em.Fail(MsgNotInitialized)
	}

	convID, history := s.openConversation(ctx, req.ConversationID)
	answer.ConversationID = convID
	s.persist(ctx, convID, models.RoleUser, req.Question)

	if err := em.Status(models.StatusIdle, statusIdleText); err != nil {
		return answer, err
	}

	convContext := BuildContext(history)
	intent := s.classifier.Classify(question, convContext)
	s.logger.Debug("Classified question", zap.String("intent", string(intent)))

	effective := question
	if intent == IntentExpand && s.Expander != nil {
		effective = s.Expander.Expand(ctx, question, history)
	}

	if err := em.Status(models.StatusWorking, statusWorkingText); err != nil {
		return answer, err
	}

	var (
		result   *models.QueryResult
		rendered string
		outcome  = metrics.OutcomeSuccess
	)
	if intent == IntentChartChange {
		result, rendered = s.rechart(question, history)
		outcome = metrics.OutcomeRechart
	} else {
		result, rendered, err = s.answer(ctx, ds, effective, convContext)
		if err != nil {
			return answer, err
		}
	}
	answer.Result = result

	if result.Failed() {
		s.Metrics.ChatTurn(metrics.OutcomeError)
		msg := result.ErrorText()
		answer.Content = errorContentPrefix + msg
		if err := em.Fail(msg); err != nil {
			return answer, err
		}
		s.persist(ctx, convID, models.RoleAssistant, answer.Content)
		if result.SQL != nil {
			answer.Suggestions = s.suggest(ctx, question, result)
			return answer, em.Suggestions(answer.Suggestions)
		}
		return answer, nil
	}

	explanation := result.ExplanationText()
	if err := em.Explanation(explanation); err != nil {
		return answer, err
	}
	if err := em.Result(rendered); err != nil {
		return answer, err
	}

	answer.Content = s.assistantContent(explanation, rendered)
	s.persist(ctx, convID, models.RoleAssistant, answer.Content)
	s.Metrics.ChatTurn(outcome)

	if err := em.Status(models.StatusSuccess, statusSuccessText); err != nil {
		return answer, err
	}
	answer.Suggestions = s.suggest(ctx, question, result)
	if err := em.Suggestions(answer.Suggestions); err != nil {
		return answer, err
	}
	return answer, em.Done()
}

func (s *chatService) ready(ctx context.Context) (datasource.Datasource, bool) {
	if s.Generator == nil || !s.Generator.Ready() || s.Datasources == nil {
		return nil, false
	}
	ds, err := s.Datasources.Datasource(ctx)
	if err != nil {
		s.logger.Error("Datasource unavailable", zap.Error(err))
		return nil, false
	}
	return ds, true
}

// answer runs the query path: schema, generation, execution, explanation.
// Turn failures are returned inside the result; err is only set on cancellation.
func (s *chatService) answer(ctx context.Context, ds datasource.Datasource, question, convContext string) (*models.QueryResult, string, error) {
	enhanced := EnhanceQuestion(question, convContext)
	snapshot := s.Resolver.Resolve(ctx, ds, enhanced)
	prompt := BuildGenerationPrompt(snapshot, enhanced)

	sqlText, err := s.SQL.Generate(ctx, prompt, snapshot)
	if err != nil {
		var turnErr *TurnError
		if errors.As(err, &turnErr) {
			return models.NewErrorResult(turnErr.SQL, turnErr.Message), "", nil
		}
		return nil, "", err
	}

	exec, err := s.Runner.Run(ctx, ds, sqlText)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			return models.NewErrorResult(sqlText, execErr.Error()), "", nil
		}
		return nil, "", err
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	explanation := Attempt(ctx, s.logger, "explain", msgDefaultExplain, func(ctx context.Context) (string, error) {
		text, err := s.Generator.GenerateExplanation(ctx, question, sqlText)
		if err == nil && strings.TrimSpace(text) == "" {
			return msgDefaultExplain, nil
		}
		return text, err
	})

	columns := exec.ColumnNames()
	result := models.NewSuccessResult(sqlText, columns, exec.Rows, explanation)
	return result, s.Renderer.Result(question, columns, result.Result), nil
}

// rechart re-renders the newest stored table for a chart-change request.
func (s *chatService) rechart(question string, history []models.Message) (*models.QueryResult, string) {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != models.RoleAssistant {
			continue
		}
		table, err := render.ParseTableBlock(msg.Content)
		if err != nil {
			if !errors.Is(err, render.ErrNoTableBlock) {
				s.logger.Warn("Stored table block unreadable", zap.String("message_id", msg.ID), zap.Error(err))
			}
			continue
		}
		if len(table.Rows) == 0 {
			continue
		}
		records := table.Records()
		result := models.NewSuccessResult("", table.ColumnNames(), records, msgRecharted)
		return result, s.Renderer.Rechart(question, table)
	}
	return models.NewErrorResult("", msgNoPreviousResult), ""
}

func (s *chatService) assistantContent(explanation, rendered string) string {
	content := ""
	if trimmed := strings.TrimSpace(explanation); trimmed != "" && !s.Rules.IsStatusOnly(trimmed) {
		content = trimmed
	}
	return content + rendered
}

func (s *chatService) suggest(ctx context.Context, question string, result *models.QueryResult) []string {
	if s.Suggestions == nil {
		return []string{}
	}
	return s.Suggestions.Suggest(ctx, SuggestionInput{
		Question: question,
		SQL:      result.SQLText(),
		Columns:  result.Columns,
		Rows:     result.Result,
	})
}

// openConversation loads the transcript for id, creating a conversation
// when id is empty or unknown. Storage failures leave the turn unsaved.
func (s *chatService) openConversation(ctx context.Context, id string) (string, []models.Message) {
	if s.Conversations == nil {
		return id, nil
	}
	if id != "" {
		conv, err := s.Conversations.Get(ctx, id)
		if err == nil {
			return conv.ID, conv.Messages
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Failed to load conversation", zap.String("conversation_id", id), zap.Error(err))
			return "", nil
		}
		s.logger.Info("Conversation not found, starting a new one", zap.String("conversation_id", id))
	}

	conv, err := s.Conversations.Create(ctx, "")
	if err != nil {
		s.logger.Error("Failed to create conversation", zap.Error(err))
		return "", nil
	}
	return conv.ID, nil
}

func (s *chatService) persist(ctx context.Context, convID string, role models.MessageRole, content string) {
	if s.Conversations == nil || convID == "" {
		return
	}
	// Saving must survive a client that hung up mid-stream.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.Conversations.AddMessage(saveCtx, convID, role, content); err != nil {
		s.logger.Error("Failed to save message",
			zap.String("conversation_id", convID),
			zap.String("role", string(role)),
			zap.Error(err))
	}
}
