package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/generator"
)

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthReport is the readiness of the database and the generator.
type HealthReport struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
	VannaInitialized  bool   `json:"vanna_initialized"`
}

// HealthService reports whether questions can be answered.
type HealthService interface {
	Check(ctx context.Context) HealthReport
}

type healthService struct {
	generator   generator.Generator
	datasources DatasourceProvider
	logger      *zap.Logger
}

// NewHealthService creates a health service.
func NewHealthService(gen generator.Generator, datasources DatasourceProvider, logger *zap.Logger) HealthService {
	return &healthService{
		generator:   gen,
		datasources: datasources,
		logger:      logger.Named("health"),
	}
}

var _ HealthService = (*healthService)(nil)

func (s *healthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		DatabaseConnected: s.databaseConnected(ctx),
		VannaInitialized:  s.generator != nil && s.generator.Ready(),
	}

	switch {
	case report.DatabaseConnected && report.VannaInitialized:
		report.Status = HealthHealthy
	case report.DatabaseConnected || report.VannaInitialized:
		report.Status = HealthDegraded
	default:
		report.Status = HealthUnhealthy
	}
	return report
}

func (s *healthService) databaseConnected(ctx context.Context) bool {
	if s.datasources == nil {
		return false
	}
	ds, err := s.datasources.Datasource(ctx)
	if err != nil {
		s.logger.Warn("Datasource unavailable", zap.Error(err))
		return false
	}
	if err := ds.TestConnection(ctx); err != nil {
		s.logger.Warn("Database connection test failed", zap.Error(err))
		return false
	}
	return true
}
