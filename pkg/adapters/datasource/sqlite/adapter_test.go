package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

func openTestDB(t *testing.T) datasource.Datasource {
	t.Helper()
	cfg := &datasource.ConnectionConfig{Type: "sqlite3", Path: filepath.Join(t.TempDir(), "blog.db")}
	ds, err := datasource.Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, joined DATE, score REAL)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT DEFAULT 'untitled')`,
		`INSERT INTO users (name, joined, score) VALUES ('alice', '2024-01-15', 9.5), ('bob', '2024-02-01', 7)`,
	} {
		_, err := ds.Query(ctx, stmt)
		require.NoError(t, err)
	}
	return ds
}

func TestAdapter_SchemaCalls(t *testing.T) {
	ds := openTestDB(t)
	ctx := context.Background()

	tables, err := ds.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "posts"}, datasource.TableNames(tables))

	ddl, err := ds.TableDDL(ctx, "posts")
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE posts")

	cols, err := ds.DescribeTable(ctx, "posts")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.True(t, cols[0].IsPrimary)
	require.NotNil(t, cols[2].Default)
	assert.Equal(t, "'untitled'", *cols[2].Default)

	n, err := ds.CountRows(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAdapter_QueryNormalizesValues(t *testing.T) {
	ds := openTestDB(t)

	result, err := ds.Query(context.Background(), "SELECT name, joined, score FROM users ORDER BY id")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "joined", "score"}, result.ColumnNames())
	require.Len(t, result.Rows, 2)
	assert.Equal(t, models.Row{"name": "alice", "joined": "2024-01-15", "score": 9.5}, result.Rows[0])
}

func TestAdapter_MissingTable(t *testing.T) {
	ds := openTestDB(t)
	ctx := context.Background()

	_, err := ds.TableDDL(ctx, "comments")
	assert.Error(t, err)

	_, err = ds.Query(ctx, "SELECT * FROM comments")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestNewAdapter_RequiresPath(t *testing.T) {
	_, err := NewAdapter(&datasource.ConnectionConfig{Type: datasource.TypeSQLite}, zap.NewNop())
	assert.Error(t, err)
}
