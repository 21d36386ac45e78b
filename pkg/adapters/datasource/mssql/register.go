package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        datasource.TypeSQLServer,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+, Azure SQL Database",
		},
		Factory: func(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (datasource.Datasource, error) {
			return NewAdapter(cfg, logger)
		},
	})
}
