package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        datasource.TypeMySQL,
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+, MariaDB",
		},
		Factory: func(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (datasource.Datasource, error) {
			return NewAdapter(cfg, logger)
		},
	})
}
