// Package postgres implements the PostgreSQL datasource on pgxpool.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const defaultSchema = "public"

// Adapter provides PostgreSQL connectivity.
type Adapter struct {
	pool         *pgxpool.Pool
	database     string
	queryTimeout time.Duration
	logger       *zap.Logger
}

var _ datasource.Datasource = (*Adapter)(nil)

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break URL parsing.
func buildConnectionString(cfg *datasource.ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Address(),
		url.QueryEscape(cfg.Database),
		url.QueryEscape(sslMode),
	)
}

// NewAdapter creates a pgx pool for cfg.
func NewAdapter(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	poolConfig, err := pgxpool.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres connection string: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{
		pool:         pool,
		database:     cfg.Database,
		queryTimeout: cfg.QueryTimeout,
		logger:       logger.Named("postgres"),
	}, nil
}

// TestConnection verifies the database is reachable and that the session
// landed on the configured database rather than a default one.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if a.database != "" && !strings.EqualFold(currentDB, a.database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.database, currentDB)
	}
	return nil
}

func (a *Adapter) DatabaseName() string {
	return a.database
}

// ListTables returns user tables and views. Tables outside the public schema
// are reported schema-qualified so they can be queried as named.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.Table, error) {
	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type IN ('BASE TABLE', 'VIEW')
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_schema = 'public' DESC, table_schema, table_name`

	rows, err := a.pool.Query(ctx, query)
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
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			c.column_default,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
				  ON kcu.constraint_name = tc.constraint_name
				 AND kcu.table_schema = tc.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_schema = c.table_schema
				  AND tc.table_name = c.table_name
				  AND kcu.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	schema, name := parseSchemaTable(table)
	rows, err := a.pool.Query(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := make([]datasource.Column, 0)
	for rows.Next() {
		var col datasource.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.Default, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("relation %q does not exist", table)
	}
	return columns, nil
}

// TableDDL synthesizes CREATE TABLE from the catalog; PostgreSQL has no SHOW CREATE TABLE.
func (a *Adapter) TableDDL(ctx context.Context, table string) (string, error) {
	columns, err := a.DescribeTable(ctx, table)
	if err != nil {
		return "", err
	}
	return datasource.BuildCreateTable(table, columns, a.QuoteIdentifier), nil
}

func (a *Adapter) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := a.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+a.QuoteIdentifier(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return n, nil
}

// Query runs one statement and collects its rows.
func (a *Adapter) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	if a.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.queryTimeout)
		defer cancel()
	}

	rows, err := a.pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}
	datasource.DedupeColumnNames(columns)

	resultRows := make([]models.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col.Name] = normalizeValue(values[i], col.Type)
		}
		resultRows = append(resultRows, row)
	}
	// pgx reports statement errors only after iteration.
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// QuoteIdentifier quotes a possibly schema-qualified name.
func (a *Adapter) QuoteIdentifier(name string) string {
	if !strings.Contains(name, ".") {
		return pgx.Identifier{name}.Sanitize()
	}
	schema, table := parseSchemaTable(name)
	return pgx.Identifier{schema, table}.Sanitize()
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// parseSchemaTable splits "schema.table", defaulting to public.
func parseSchemaTable(name string) (string, string) {
	if i := strings.IndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name[:i], name[i+1:]
	}
	return defaultSchema, name
}
