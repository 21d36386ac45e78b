// Package mssql implements the SQL Server datasource on go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

const connectionTimeoutSeconds = 30

// Adapter provides SQL Server connectivity with SQL authentication.
type Adapter struct {
	db           *sql.DB
	database     string
	queryTimeout time.Duration
	logger       *zap.Logger
}

var _ datasource.Datasource = (*Adapter)(nil)

// buildConnectionString builds a sqlserver:// URL. ssl_mode "require" and
// "verify-full" turn on encryption; anything else leaves it off.
func buildConnectionString(cfg *datasource.ConnectionConfig) string {
	query := url.Values{}
	query.Add("database", cfg.Database)

	switch cfg.SSLMode {
	case "require":
		query.Add("encrypt", "true")
		query.Add("TrustServerCertificate", "true")
	case "verify-full":
		query.Add("encrypt", "true")
	default:
		query.Add("encrypt", "disable")
	}
	query.Add("connection timeout", fmt.Sprintf("%d", connectionTimeoutSeconds))

	return fmt.Sprintf("sqlserver://%s:%s@%s?%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Address(),
		query.Encode(),
	)
}

// NewAdapter opens a SQL Server connection pool.
func NewAdapter(cfg *datasource.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return NewAdapterWithDB(db, cfg, logger), nil
}

// NewAdapterWithDB wraps an existing pool.
func NewAdapterWithDB(db *sql.DB, cfg *datasource.ConnectionConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		db:           db,
		database:     cfg.Database,
		queryTimeout: cfg.QueryTimeout,
		logger:       logger.Named("mssql"),
	}
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	if a.database != "" && !strings.EqualFold(currentDB, a.database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.database, currentDB)
	}
	return nil
}

func (a *Adapter) DatabaseName() string {
	return a.database
}

// ListTables returns user tables and views; names outside dbo are schema-qualified.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.Table, error) {
	const query = `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		  AND TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY CASE WHEN TABLE_SCHEMA = 'dbo' THEN 0 ELSE 1 END, TABLE_SCHEMA, TABLE_NAME`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := make([]datasource.Table, 0)
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if schema != defaultSchema {
			name = schema + "." + name
		}
		tables = append(tables, datasource.Table{Schema: schema, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// DescribeTable returns columns in ordinal order with primary key flags.
func (a *Adapter) DescribeTable(ctx context.Context, table string) ([]datasource.Column, error) {
	const query = `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.CHARACTER_MAXIMUM_LENGTH,
			CAST(c.NUMERIC_PRECISION AS BIGINT),
			CAST(c.NUMERIC_SCALE AS BIGINT),
			CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
			c.COLUMN_DEFAULT,
			CASE WHEN pk.COLUMN_NAME IS NULL THEN 0 ELSE 1 END
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			  ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			 AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		) pk
		  ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA
		 AND pk.TABLE_NAME = c.TABLE_NAME
		 AND pk.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`

	schema, name := parseSchemaTable(table)
	rows, err := a.db.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := make([]datasource.Column, 0)
	for rows.Next() {
		var (
			colName, dataType           string
			maxLength, precision, scale sql.NullInt64
			nullable, primary           int
			def                         sql.NullString
		)
		if err := rows.Scan(&colName, &dataType, &maxLength, &precision, &scale, &nullable, &def, &primary); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		col := datasource.Column{
			Name:       colName,
			DataType:   formatColumnType(dataType, nullablePtr(maxLength), nullablePtr(precision), nullablePtr(scale)),
			IsNullable: nullable == 1,
			IsPrimary:  primary == 1,
		}
		if def.Valid {
			col.Default = &def.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("Invalid object name '%s'", table)
	}
	return columns, nil
}

func nullablePtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

// TableDDL synthesizes CREATE TABLE from INFORMATION_SCHEMA.
func (a *Adapter) TableDDL(ctx context.Context, table string) (string, error) {
	columns, err := a.DescribeTable(ctx, table)
	if err != nil {
		return "", err
	}
	return datasource.BuildCreateTable(table, columns, a.QuoteIdentifier), nil
}

func (a *Adapter) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT_BIG(*) FROM "+a.QuoteIdentifier(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return n, nil
}

// Query runs one statement and returns its rows.
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

	return datasource.ScanRowsWith(rows, normalizeValue)
}

// QuoteIdentifier brackets a possibly schema-qualified name.
func (a *Adapter) QuoteIdentifier(name string) string {
	if !strings.Contains(name, ".") {
		return quoteName(name)
	}
	schema, table := parseSchemaTable(name)
	return quoteName(schema) + "." + quoteName(table)
}

func (a *Adapter) Close() error {
	return a.db.Close()
}
