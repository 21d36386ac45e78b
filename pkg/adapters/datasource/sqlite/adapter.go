// Package sqlite implements the SQLite datasource on mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

// Adapter provides access to a SQLite database file.
type Adapter struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
	logger       *zap.Logger
}

var _ datasource.Datasource = (*Adapter)(nil)

// NewAdapter opens the database file at cfg.Path.
func NewAdapter(cfg *datasource.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", "file:"+cfg.Path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &Adapter{
		db:           db,
		path:         cfg.Path,
		queryTimeout: cfg.QueryTimeout,
		logger:       logger.Named("sqlite"),
	}, nil
}

func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

func (a *Adapter) DatabaseName() string {
	return a.path
}

// ListTables returns tables and views in creation order, skipping internal tables.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.Table, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		 ORDER BY rowid`)
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
		tables = append(tables, datasource.Table{Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// TableDDL returns the statement SQLite stored when the table was created.
func (a *Adapter) TableDDL(ctx context.Context, table string) (string, error) {
	var ddl sql.NullString
	err := a.db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, table).Scan(&ddl)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no such table: %s", table)
	}
	if err != nil {
		return "", fmt.Errorf("read ddl of %s: %w", table, err)
	}
	return ddl.String, nil
}

// DescribeTable reads PRAGMA table_info.
func (a *Adapter) DescribeTable(ctx context.Context, table string) ([]datasource.Column, error) {
	rows, err := a.db.QueryContext(ctx, "PRAGMA table_info("+a.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	columns := make([]datasource.Column, 0)
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &def, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		col := datasource.Column{
			Name:       name,
			DataType:   colType,
			IsNullable: notNull == 0 && pk == 0,
			IsPrimary:  pk > 0,
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
		return nil, fmt.Errorf("no such table: %s", table)
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

// QuoteIdentifier double-quotes name, doubling embedded quotes.
func (a *Adapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (a *Adapter) Close() error {
	return a.db.Close()
}
