package datasource

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
)

// Adapter type names used for registration.
const (
	TypeMySQL     = "mysql"
	TypePostgres  = "postgres"
	TypeSQLServer = "sqlserver"
	TypeSQLite    = "sqlite"
)

var typeAliases = map[string]string{
	"mysql":      TypeMySQL,
	"mariadb":    TypeMySQL,
	"postgres":   TypePostgres,
	"postgresql": TypePostgres,
	"pgsql":      TypePostgres,
	"sqlserver":  TypeSQLServer,
	"mssql":      TypeSQLServer,
	"sqlite":     TypeSQLite,
	"sqlite3":    TypeSQLite,
}

// NormalizeType maps connection-string schemes and config aliases to a registered type name.
func NormalizeType(t string) (string, bool) {
	canonical, ok := typeAliases[t]
	return canonical, ok
}

// DefaultPort returns the conventional port for an adapter type, or 0 when it has none.
func DefaultPort(dsType string) int {
	switch dsType {
	case TypeMySQL:
		return 3306
	case TypePostgres:
		return 5432
	case TypeSQLServer:
		return 1433
	default:
		return 0
	}
}

// ConnectionConfig holds everything an adapter needs to open a connection.
type ConnectionConfig struct {
	Type         string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	Path         string // sqlite file
	SSLMode      string
	MaxOpenConns int
	QueryTimeout time.Duration
}

// FromConfig converts the application database settings.
func FromConfig(cfg config.DatabaseConfig) *ConnectionConfig {
	return &ConnectionConfig{
		Type:         cfg.Type,
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password,
		Database:     cfg.Database,
		Path:         cfg.Path,
		SSLMode:      cfg.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
		QueryTimeout: cfg.QueryTimeout,
	}
}

// Address returns host:port, filling in the default port for the type.
func (c *ConnectionConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort(c.Type)
	}
	return c.Host + ":" + strconv.Itoa(port)
}

// Key identifies the connection target without its password.
func (c *ConnectionConfig) Key() string {
	if c.Type == TypeSQLite {
		return fmt.Sprintf("%s:%s", c.Type, c.Path)
	}
	return fmt.Sprintf("%s://%s@%s/%s", c.Type, c.User, c.Address(), c.Database)
}

// Name returns the database name, or the file path for sqlite.
func (c *ConnectionConfig) Name() string {
	if c.Type == TypeSQLite && c.Database == "" {
		return c.Path
	}
	return c.Database
}
