// Package mysql implements the MySQL datasource on go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

const (
	connectTimeout  = 10 * time.Second
	connMaxLifetime = 5 * time.Minute
)

// Adapter provides MySQL connectivity.
type Adapter struct {
	db           *sql.DB
	database     string
	queryTimeout time.Duration
	logger       *zap.Logger
}

var _ datasource.Datasource = (*Adapter)(nil)

// FormatDSN builds a go-sql-driver DSN. Times are parsed into time.Time so
// result normalization can format them.
func FormatDSN(cfg *datasource.ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Address()
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = connectTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// NewAdapter opens a MySQL connection pool. The pool connects lazily;
// call TestConnection to verify credentials.
func NewAdapter(cfg *datasource.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open("mysql", FormatDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(connMaxLifetime)

	return NewAdapterWithDB(db, cfg, logger), nil
}

// NewAdapterWithDB wraps an existing pool.
func NewAdapterWithDB(db *sql.DB, cfg *datasource.ConnectionConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		db:           db,
		database:     cfg.Database,
		queryTimeout: cfg.QueryTimeout,
		logger:       logger.Named("mysql"),
	}
}

// TestConnection pings the server and checks the session is on the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var current sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if a.database != "" && !strings.EqualFold(current.String, a.database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.database, current.String)
	}
	return nil
}

func (a *Adapter) DatabaseName() string {
	return a.database
}

// ListTables returns tables in SHOW TABLES order.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.Table, error) {
	rows, err := a.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := make([]datasource.Table, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, datasource.Table{Schema: a.database, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// TableDDL returns the second column of SHOW CREATE TABLE, which holds the
// statement for both tables and views.
func (a *Adapter) TableDDL(ctx context.Context, table string) (string, error) {
	rows, err := a.db.QueryContext(ctx, "SHOW CREATE TABLE "+a.QuoteIdentifier(table))
	if err != nil {
		return "", fmt.Errorf("show create table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("show create table %s: %w", table, err)
	}
	if len(cols) < 2 {
		return "", fmt.Errorf("show create table %s: unexpected %d columns", table, len(cols))
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("show create table %s: %w", table, err)
		}
		return "", fmt.Errorf("show create table %s: no rows", table)
	}

	values := make([]sql.RawBytes, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return "", fmt.Errorf("scan create table %s: %w", table, err)
	}
	return string(values[1]), nil
}

// DescribeTable runs DESCRIBE and maps Field/Type/Null/Key/Default/Extra.
func (a *Adapter) DescribeTable(ctx context.Context, table string) ([]datasource.Column, error) {
	rows, err := a.db.QueryContext(ctx, "DESCRIBE "+a.QuoteIdentifier(table))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	columns := make([]datasource.Column, 0)
	for rows.Next() {
		var field, colType, null, key, extra string
		var def sql.NullString
		if err := rows.Scan(&field, &colType, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		col := datasource.Column{
			Name:       field,
			DataType:   colType,
			IsNullable: strings.EqualFold(null, "YES"),
			IsPrimary:  key == "PRI",
			Extra:      extra,
		}
		if def.Valid {
			col.Default = &def.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	return columns, nil
}

func (a *Adapter) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+a.QuoteIdentifier(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return n, nil
}

// Query runs one statement. Driver errors are returned unwrapped so their
// MySQL error numbers stay visible to error classification.
func (a *Adapter) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	if a.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.queryTimeout)
		defer cancel()
	}

	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return datasource.ScanRows(rows)
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func (a *Adapter) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (a *Adapter) Close() error {
	return a.db.Close()
}
