package handlers

import (
	"context"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// mockChatService replays a fixed list of frames.
type mockChatService struct {
	events  []models.StreamEvent
	err     error
	answer  *services.ChatAnswer
	lastReq services.ChatRequest
}

func (m *mockChatService) Stream(ctx context.Context, req services.ChatRequest, events chan<- models.StreamEvent) error {
	m.lastReq = req
	for _, e := range m.events {
		events <- e
	}
	return m.err
}

func (m *mockChatService) Ask(ctx context.Context, req services.ChatRequest) (*services.ChatAnswer, error) {
	m.lastReq = req
	return m.answer, m.err
}

type mockTrainingService struct {
	resp    *services.TrainResponse
	items   []models.TrainingItem
	err     error
	lastReq services.TrainRequest
}

func (m *mockTrainingService) Train(ctx context.Context, req services.TrainRequest) (*services.TrainResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockTrainingService) TrainingData(ctx context.Context) ([]models.TrainingItem, error) {
	return m.items, m.err
}

func (m *mockTrainingService) TrainSchema(ctx context.Context, ds datasource.Datasource) (int, error) {
	return 0, m.err
}

type mockTableService struct {
	tables []services.TableInfo
	err    error
}

func (m *mockTableService) Tables(ctx context.Context) ([]services.TableInfo, error) {
	return m.tables, m.err
}

func (m *mockTableService) TableDDL(ctx context.Context, table string) (*services.TableInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.tables {
		if t.TableName == table {
			return &t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type mockHealthService struct {
	report services.HealthReport
}

func (m *mockHealthService) Check(ctx context.Context) services.HealthReport {
	return m.report
}

type mockProfileService struct {
	result  *services.DatabaseQuestions
	err     error
	lastArg string
}

func (m *mockProfileService) Questions(ctx context.Context, connStr string) (*services.DatabaseQuestions, error) {
	m.lastArg = connStr
	return m.result, m.err
}
