package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/generator"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const (
	// MsgNothingToTrain is returned when a training request carries no data.
	MsgNothingToTrain = "請至少提供一種訓練資料（ddl、documentation 或 sql+question）"
	// MsgIncompleteSQLPair is returned when only one of question and sql is given.
	MsgIncompleteSQLPair = "SQL 訓練需要同時提供 question 和 sql 參數"
)

// TrainRequest carries any combination of training data.
type TrainRequest struct {
	DDL           string `json:"ddl,omitempty" yaml:"ddl"`
	Documentation string `json:"documentation,omitempty" yaml:"documentation"`
	Question      string `json:"question,omitempty" yaml:"question"`
	SQL           string `json:"sql,omitempty" yaml:"sql"`
}

// TrainResponse reports which parts of a request were stored.
type TrainResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TrainingService manages the generator's training data.
type TrainingService interface {
	// Train stores every item present in req. It returns ErrInvalidInput when
	// req holds nothing trainable and ErrNotInitialized without a generator.
	Train(ctx context.Context, req TrainRequest) (*TrainResponse, error)

	TrainingData(ctx context.Context) ([]models.TrainingItem, error)

	// TrainSchema stores the DDL of every table in ds and returns how many were stored.
	TrainSchema(ctx context.Context, ds datasource.Datasource) (int, error)
}

type trainingService struct {
	generator generator.Generator
	logger    *zap.Logger
}

// NewTrainingService creates a training service.
func NewTrainingService(gen generator.Generator, logger *zap.Logger) TrainingService {
	return &trainingService{
		generator: gen,
		logger:    logger.Named("training"),
	}
}

var _ TrainingService = (*trainingService)(nil)

func (s *trainingService) ready() bool {
	return s.generator != nil && s.generator.Ready()
}

func (s *trainingService) Train(ctx context.Context, req TrainRequest) (*TrainResponse, error) {
	if !s.ready() {
		return nil, apperrors.ErrNotInitialized
	}

	ddl := strings.TrimSpace(req.DDL)
	doc := strings.TrimSpace(req.Documentation)
	question := strings.TrimSpace(req.Question)
	sqlText := strings.TrimSpace(req.SQL)

	hasPair := question != "" && sqlText != ""
	halfPair := (question != "") != (sqlText != "")
	if ddl == "" && doc == "" && !hasPair {
		if halfPair {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, MsgIncompleteSQLPair)
		}
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, MsgNothingToTrain)
	}

	var (
		stored   int
		messages []string
	)
	record := func(item models.TrainingItem, okMsg, failMsg string) {
		if _, err := s.generator.Train(ctx, item); err != nil {
			s.logger.Error("Failed to store training item", zap.String("type", string(item.Type)), zap.Error(err))
			messages = append(messages, failMsg)
			return
		}
		stored++
		messages = append(messages, okMsg)
	}

	if ddl != "" {
		record(models.TrainingItem{Type: models.TrainingDDL, Content: ddl}, "成功添加 DDL 訓練資料", "添加 DDL 訓練資料失敗")
	}
	if doc != "" {
		record(models.TrainingItem{Type: models.TrainingDocumentation, Content: doc}, "成功添加文檔訓練資料", "添加文檔訓練資料失敗")
	}
	if hasPair {
		record(models.TrainingItem{Type: models.TrainingSQL, Question: question, Content: sqlText}, "成功添加 SQL 訓練資料", "添加 SQL 訓練資料失敗")
	} else if halfPair {
		messages = append(messages, MsgIncompleteSQLPair)
	}

	s.logger.Info("Training request handled", zap.Int("stored", stored))
	return &TrainResponse{Success: stored > 0, Message: strings.Join(messages, "; ")}, nil
}

func (s *trainingService) TrainingData(ctx context.Context) ([]models.TrainingItem, error) {
	if !s.ready() {
		return nil, apperrors.ErrNotInitialized
	}
	items, err := s.generator.TrainingData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load training data: %w", err)
	}
	if items == nil {
		items = []models.TrainingItem{}
	}
	return items, nil
}

func (s *trainingService) TrainSchema(ctx context.Context, ds datasource.Datasource) (int, error) {
	if !s.ready() {
		return 0, apperrors.ErrNotInitialized
	}
	tables, err := ds.ListTables(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tables: %w", err)
	}

	stored := 0
	for _, t := range tables {
		ddl, err := ds.TableDDL(ctx, t.Name)
		if err != nil {
			s.logger.Warn("Skipping table without DDL", zap.String("table", t.Name), zap.Error(err))
			continue
		}
		if _, err := s.generator.Train(ctx, models.TrainingItem{Type: models.TrainingDDL, Content: ddl}); err != nil {
			return stored, fmt.Errorf("failed to train on table %s: %w", t.Name, err)
		}
		stored++
	}
	s.logger.Info("Trained on schema", zap.Int("tables", stored))
	return stored, nil
}
