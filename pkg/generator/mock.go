package generator

import (
	"context"
	"sync"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// Mock is a configurable Generator for tests.
type Mock struct {
	// SQLFunc answers GenerateSQL. If nil, SQL is returned.
	SQLFunc func(ctx context.Context, question string) (string, error)
	SQL     string

	// ExplanationFunc answers GenerateExplanation. If nil, Explanation is returned.
	ExplanationFunc func(ctx context.Context, question, sqlQuery string) (string, error)
	Explanation     string

	Items    []models.TrainingItem
	TrainErr error
	NotReady bool

	mu        sync.Mutex
	Questions []string
}

var _ Generator = (*Mock)(nil)

// NewMock returns a ready mock that answers every question with sqlText.
func NewMock(sqlText string) *Mock {
	return &Mock{SQL: sqlText, Explanation: "查詢所有資料"}
}

func (m *Mock) GenerateSQL(ctx context.Context, question string) (string, error) {
	m.mu.Lock()
	m.Questions = append(m.Questions, question)
	fn := m.SQLFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, question)
	}
	return m.SQL, nil
}

func (m *Mock) GenerateExplanation(ctx context.Context, question, sqlQuery string) (string, error) {
	if m.ExplanationFunc != nil {
		return m.ExplanationFunc(ctx, question, sqlQuery)
	}
	return m.Explanation, nil
}

func (m *Mock) Train(ctx context.Context, item models.TrainingItem) (string, error) {
	if m.TrainErr != nil {
		return "", m.TrainErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == "" {
		item.ID = "mock-" + string(item.Type)
	}
	m.Items = append(m.Items, item)
	return item.ID, nil
}

func (m *Mock) TrainingData(ctx context.Context) ([]models.TrainingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TrainingItem{}, m.Items...), nil
}

func (m *Mock) TrainingCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Items), nil
}

func (m *Mock) Ready() bool { return !m.NotReady }

// GenerateCalls returns how many questions were asked.
func (m *Mock) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Questions)
}

// LastQuestion returns the most recent question, or "".
func (m *Mock) LastQuestion() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Questions) == 0 {
		return ""
	}
	return m.Questions[len(m.Questions)-1]
}
