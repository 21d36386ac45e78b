// Package datasource defines the database abstraction the chat pipeline
// queries through, plus the registry adapters add themselves to.
package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// Datasource is a live connection to the database questions are answered against.
// Implementations own their connection pool and are safe for concurrent use.
type Datasource interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// DatabaseName returns the database (or file) this datasource is bound to.
	DatabaseName() string

	// ListTables returns user tables in database order.
	ListTables(ctx context.Context) ([]Table, error)

	// TableDDL returns the CREATE TABLE statement for a table.
	TableDDL(ctx context.Context, table string) (string, error)

	// DescribeTable returns column information for a table.
	DescribeTable(ctx context.Context, table string) ([]Column, error)

	// CountRows returns the number of rows in a table.
	CountRows(ctx context.Context, table string) (int64, error)

	// Query runs a single statement and returns its rows with normalized values.
	// Statements that return no rows yield an empty result.
	Query(ctx context.Context, sqlQuery string) (*QueryExecutionResult, error)

	// QuoteIdentifier quotes a table or column name for this dialect.
	QuoteIdentifier(name string) string

	// Close releases the connection pool.
	Close() error
}

// Table represents a database table.
type Table struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
}

// Column represents a database column.
type Column struct {
	Name       string  `json:"name"`
	DataType   string  `json:"type"`
	IsNullable bool    `json:"is_nullable"`
	IsPrimary  bool    `json:"is_primary"`
	Default    *string `json:"default,omitempty"`
	Extra      string  `json:"extra,omitempty"`
}

// ColumnInfo describes a result column with its database type name.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // e.g. "VARCHAR", "DATE", "INT4"
}

// QueryExecutionResult holds the rows produced by Query.
// Columns preserve result order; Rows are keyed by column name.
type QueryExecutionResult struct {
	Columns  []ColumnInfo `json:"columns"`
	Rows     []models.Row `json:"rows"`
	RowCount int          `json:"row_count"`
}

// ColumnNames returns the result column names in order.
func (r *QueryExecutionResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// TableNames flattens a table list to bare names.
func TableNames(tables []Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}
