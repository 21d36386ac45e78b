package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// MockDatasource is an in-memory Datasource for tests.
// Tables, DDL and Columns seed the schema calls; QueryFunc answers Query.
type MockDatasource struct {
	Name      string
	Tables    []Table
	DDL       map[string]string
	Columns   map[string][]Column
	RowCounts map[string]int64

	QueryFunc          func(ctx context.Context, sql string) (*QueryExecutionResult, error)
	TestConnectionFunc func(ctx context.Context) error
	ListTablesErr      error
	TableDDLErr        error

	mu      sync.Mutex
	Queries []string
	Closed  bool
}

var _ Datasource = (*MockDatasource)(nil)

// NewMockDatasource creates a mock exposing the given tables with simple DDL.
func NewMockDatasource(tables ...string) *MockDatasource {
	m := &MockDatasource{
		Name:      "mockdb",
		DDL:       make(map[string]string),
		Columns:   make(map[string][]Column),
		RowCounts: make(map[string]int64),
	}
	for _, t := range tables {
		m.Tables = append(m.Tables, Table{Name: t})
		m.DDL[t] = fmt.Sprintf("CREATE TABLE `%s` (\n  `id` int NOT NULL,\n  PRIMARY KEY (`id`)\n)", t)
		m.Columns[t] = []Column{{Name: "id", DataType: "int", IsPrimary: true}}
	}
	return m
}

// WithRows makes every Query return the given columns and rows.
func (m *MockDatasource) WithRows(columns []string, rows []models.Row) *MockDatasource {
	m.QueryFunc = func(ctx context.Context, sql string) (*QueryExecutionResult, error) {
		return NewResult(columns, rows), nil
	}
	return m
}

// NewResult builds a QueryExecutionResult with untyped columns.
func NewResult(columns []string, rows []models.Row) *QueryExecutionResult {
	infos := make([]ColumnInfo, len(columns))
	for i, c := range columns {
		infos[i] = ColumnInfo{Name: c}
	}
	if rows == nil {
		rows = []models.Row{}
	}
	return &QueryExecutionResult{Columns: infos, Rows: rows, RowCount: len(rows)}
}

func (m *MockDatasource) TestConnection(ctx context.Context) error {
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx)
	}
	return nil
}

func (m *MockDatasource) DatabaseName() string { return m.Name }

func (m *MockDatasource) ListTables(ctx context.Context) ([]Table, error) {
	if m.ListTablesErr != nil {
		return nil, m.ListTablesErr
	}
	return append([]Table(nil), m.Tables...), nil
}

func (m *MockDatasource) TableDDL(ctx context.Context, table string) (string, error) {
	if m.TableDDLErr != nil {
		return "", m.TableDDLErr
	}
	ddl, ok := m.DDL[table]
	if !ok {
		return "", fmt.Errorf("table %s doesn't exist", table)
	}
	return ddl, nil
}

func (m *MockDatasource) DescribeTable(ctx context.Context, table string) ([]Column, error) {
	cols, ok := m.Columns[table]
	if !ok {
		return nil, fmt.Errorf("table %s doesn't exist", table)
	}
	return cols, nil
}

func (m *MockDatasource) CountRows(ctx context.Context, table string) (int64, error) {
	n, ok := m.RowCounts[table]
	if !ok {
		return 0, fmt.Errorf("table %s doesn't exist", table)
	}
	return n, nil
}

func (m *MockDatasource) Query(ctx context.Context, sql string) (*QueryExecutionResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, sql)
	m.mu.Unlock()

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sql)
	}
	return NewResult(nil, nil), nil
}

func (m *MockDatasource) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m *MockDatasource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// QueryCount returns how many statements were run.
func (m *MockDatasource) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// IsClosed reports whether Close was called.
func (m *MockDatasource) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}
