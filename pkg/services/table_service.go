package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/generator"
)

// TableInfo is a table with its CREATE statement. TableSchema is empty when
// the DDL could not be read.
type TableInfo struct {
	TableName   string `json:"table_name"`
	TableSchema string `json:"table_schema"`
}

// TableService exposes the schema of the configured database.
type TableService interface {
	// Tables returns every table with its DDL.
	Tables(ctx context.Context) ([]TableInfo, error)
	// TableDDL returns the DDL of one table, matched without regard to case.
	TableDDL(ctx context.Context, table string) (*TableInfo, error)
}

type tableService struct {
	generator   generator.Generator
	datasources DatasourceProvider
	logger      *zap.Logger
}

// NewTableService creates a table service.
func NewTableService(gen generator.Generator, datasources DatasourceProvider, logger *zap.Logger) TableService {
	return &tableService{
		generator:   gen,
		datasources: datasources,
		logger:      logger.Named("tables"),
	}
}

var _ TableService = (*tableService)(nil)

func (s *tableService) Tables(ctx context.Context) ([]TableInfo, error) {
	if s.generator == nil || !s.generator.Ready() {
		return nil, apperrors.ErrNotInitialized
	}
	ds, err := s.datasources.Datasource(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNotInitialized, err)
	}

	tables, err := ds.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	infos := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		ddl, err := ds.TableDDL(ctx, t.Name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Failed to read table DDL", zap.String("table", t.Name), zap.Error(err))
		}
		infos = append(infos, TableInfo{TableName: t.Name, TableSchema: ddl})
	}
	return infos, nil
}

func (s *tableService) TableDDL(ctx context.Context, table string) (*TableInfo, error) {
	ds, err := s.datasources.Datasource(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNotInitialized, err)
	}

	tables, err := ds.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		if !strings.EqualFold(t.Name, table) {
			continue
		}
		ddl, err := ds.TableDDL(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read DDL of %s: %w", t.Name, err)
		}
		return &TableInfo{TableName: t.Name, TableSchema: ddl}, nil
	}
	return nil, fmt.Errorf("%w: table %s", apperrors.ErrNotFound, table)
}
