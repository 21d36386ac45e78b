package datasource

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		name     string
		value    any
		dbType   string
		expected any
	}{
		{name: "nil", value: nil, dbType: "VARCHAR", expected: nil},
		{name: "datetime", value: ts, dbType: "DATETIME", expected: "2024-03-05 14:07:09"},
		{name: "date column", value: ts, dbType: "DATE", expected: "2024-03-05"},
		{name: "bytes to string", value: []byte("alice"), dbType: "VARCHAR", expected: "alice"},
		{name: "decimal bytes", value: []byte("12.50"), dbType: "DECIMAL", expected: 12.5},
		{name: "int bytes", value: []byte("42"), dbType: "BIGINT", expected: int64(42)},
		{name: "numeric column with junk stays string", value: []byte("n/a"), dbType: "DECIMAL", expected: "n/a"},
		{name: "int widened", value: int32(7), dbType: "INT", expected: int64(7)},
		{name: "small uint64 widened", value: uint64(9), dbType: "UNSIGNED BIGINT", expected: int64(9)},
		{name: "uint64 above int64 range kept unsigned", value: uint64(math.MaxUint64), dbType: "UNSIGNED BIGINT", expected: uint64(math.MaxUint64)},
		{name: "unsigned bytes above int64 range", value: []byte("18446744073709551615"), dbType: "UNSIGNED BIGINT", expected: uint64(math.MaxUint64)},
		{name: "float widened", value: float32(1.5), dbType: "FLOAT", expected: 1.5},
		{name: "string untouched", value: "x", dbType: "TEXT", expected: "x"},
		{name: "bool untouched", value: true, dbType: "BOOL", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeValue(tt.value, tt.dbType))
		})
	}
}

func TestScanRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		sqlmock.NewColumn("balance").OfType("DECIMAL", []byte{}),
		sqlmock.NewColumn("created_at").OfType("DATETIME", time.Time{}),
	).
		AddRow(int64(1), "alice", []byte("10.25"), created).
		AddRow(int64(2), nil, []byte("0"), created)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.QueryContext(context.Background(), "SELECT * FROM users")
	require.NoError(t, err)
	defer sqlRows.Close()

	result, err := ScanRows(sqlRows)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "balance", "created_at"}, result.ColumnNames())
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, models.Row{"id": int64(1), "name": "alice", "balance": 10.25, "created_at": "2024-01-02 03:04:05"}, result.Rows[0])
	assert.Nil(t, result.Rows[1]["name"])
	assert.Equal(t, int64(0), result.Rows[1]["balance"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanRows_DuplicateColumnNames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
	).AddRow(int64(1), int64(2), int64(3))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.QueryContext(context.Background(), "SELECT a.id, b.id, c.id FROM a, b, c")
	require.NoError(t, err)
	defer sqlRows.Close()

	result, err := ScanRows(sqlRows)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "id_2", "id_3"}, result.ColumnNames())
	assert.Equal(t, models.Row{"id": int64(1), "id_2": int64(2), "id_3": int64(3)}, result.Rows[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupeColumnNames(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "unique untouched", input: []string{"a", "b"}, expected: []string{"a", "b"}},
		{name: "repeat suffixed", input: []string{"id", "name", "id"}, expected: []string{"id", "name", "id_2"}},
		{name: "suffix already taken", input: []string{"id", "id_2", "id"}, expected: []string{"id", "id_2", "id_3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			columns := make([]ColumnInfo, len(tt.input))
			for i, n := range tt.input {
				columns[i] = ColumnInfo{Name: n, Type: "INT"}
			}
			DedupeColumnNames(columns)
			got := make([]string, len(columns))
			for i, c := range columns {
				got[i] = c.Name
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestScanRows_EmptyResultIsNotNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sqlRows, err := db.QueryContext(context.Background(), "SELECT id FROM users WHERE 1=0")
	require.NoError(t, err)
	defer sqlRows.Close()

	result, err := ScanRows(sqlRows)
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
}

func TestBuildCreateTable(t *testing.T) {
	def := "CURRENT_TIMESTAMP"
	columns := []Column{
		{Name: "id", DataType: "integer", IsPrimary: true},
		{Name: "email", DataType: "varchar(255)", IsNullable: true},
		{Name: "created_at", DataType: "timestamp", Default: &def},
	}
	quote := func(s string) string { return `"` + s + `"` }

	expected := "CREATE TABLE \"users\" (\n" +
		"  \"id\" integer NOT NULL,\n" +
		"  \"email\" varchar(255),\n" +
		"  \"created_at\" timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
		"  PRIMARY KEY (\"id\")\n" +
		")"
	assert.Equal(t, expected, BuildCreateTable("users", columns, quote))
}
