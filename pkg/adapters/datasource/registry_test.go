package datasource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestOpen_UsesRegisteredFactory(t *testing.T) {
	mock := NewMockDatasource("users")
	Register(Registration{
		Info: AdapterInfo{Type: "fake-ok", DisplayName: "Fake"},
		Factory: func(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (Datasource, error) {
			return mock, nil
		},
	})

	assert.True(t, IsRegistered("fake-ok"))

	ds, err := OpenWithRetry(context.Background(), &ConnectionConfig{Type: "fake-ok"}, fastRetry(), zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, mock, ds)
}

func TestOpen_RetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	Register(Registration{
		Info: AdapterInfo{Type: "fake-flaky"},
		Factory: func(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (Datasource, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("dial tcp: connection refused")
			}
			return NewMockDatasource(), nil
		},
	})

	_, err := OpenWithRetry(context.Background(), &ConnectionConfig{Type: "fake-flaky"}, fastRetry(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestOpen_ClosesDatasourceWhenTestConnectionFails(t *testing.T) {
	mock := NewMockDatasource()
	mock.TestConnectionFunc = func(ctx context.Context) error {
		return errors.New("Error 1045: Access denied for user 'root'")
	}
	Register(Registration{
		Info: AdapterInfo{Type: "fake-denied"},
		Factory: func(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (Datasource, error) {
			return mock, nil
		},
	})

	_, err := OpenWithRetry(context.Background(), &ConnectionConfig{Type: "fake-denied"}, fastRetry(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
	assert.True(t, mock.IsClosed())
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(context.Background(), &ConnectionConfig{Type: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		"postgresql": TypePostgres,
		"mssql":      TypeSQLServer,
		"mariadb":    TypeMySQL,
		"sqlite3":    TypeSQLite,
	}
	for alias, expected := range tests {
		got, ok := NormalizeType(alias)
		assert.True(t, ok, alias)
		assert.Equal(t, expected, got)
	}

	_, ok := NormalizeType("oracle")
	assert.False(t, ok)
}

func TestDisplayName(t *testing.T) {
	Register(Registration{Info: AdapterInfo{Type: "fake-named", DisplayName: "Fake DB"}})

	assert.Equal(t, "Fake DB", DisplayName("fake-named"))
	assert.Equal(t, "nosuch", DisplayName("nosuch"))
}
