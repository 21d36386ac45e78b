package services

import (
	"context"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
)

// DatasourceProvider hands out the datasource questions are answered against.
type DatasourceProvider interface {
	Datasource(ctx context.Context) (datasource.Datasource, error)
}

type managedDatasource struct {
	manager *datasource.ConnectionManager
	cfg     *datasource.ConnectionConfig
}

// NewManagedDatasource serves cfg through manager, which health-checks the
// pool and reopens it after an outage.
func NewManagedDatasource(manager *datasource.ConnectionManager, cfg *datasource.ConnectionConfig) DatasourceProvider {
	return &managedDatasource{manager: manager, cfg: cfg}
}

func (m *managedDatasource) Datasource(ctx context.Context) (datasource.Datasource, error) {
	return m.manager.Get(ctx, m.cfg)
}

// StaticDatasource always returns the same datasource.
type StaticDatasource struct {
	DS datasource.Datasource
}

func (s StaticDatasource) Datasource(ctx context.Context) (datasource.Datasource, error) {
	if s.DS == nil {
		return nil, apperrors.ErrNotInitialized
	}
	return s.DS, nil
}
