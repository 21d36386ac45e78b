package tools

import (
	"context"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

type mockChatService struct {
	answer  *services.ChatAnswer
	err     error
	lastReq services.ChatRequest
}

func (m *mockChatService) Stream(ctx context.Context, req services.ChatRequest, events chan<- models.StreamEvent) error {
	return m.err
}

func (m *mockChatService) Ask(ctx context.Context, req services.ChatRequest) (*services.ChatAnswer, error) {
	m.lastReq = req
	return m.answer, m.err
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
		if strings.EqualFold(t.TableName, table) {
			return &t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type mockTrainingService struct {
	items []models.TrainingItem
	err   error
}

func (m *mockTrainingService) Train(ctx context.Context, req services.TrainRequest) (*services.TrainResponse, error) {
	return nil, m.err
}

func (m *mockTrainingService) TrainingData(ctx context.Context) ([]models.TrainingItem, error) {
	return m.items, m.err
}

func (m *mockTrainingService) TrainSchema(ctx context.Context, ds datasource.Datasource) (int, error) {
	return 0, m.err
}

type mockHealthService struct {
	report services.HealthReport
}

func (m *mockHealthService) Check(ctx context.Context) services.HealthReport {
	return m.report
}
