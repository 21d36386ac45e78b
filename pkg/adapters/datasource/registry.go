package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/retry"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "mysql", "postgres", "sqlserver", "sqlite"
	DisplayName string `json:"display_name"` // "MySQL", "PostgreSQL"
	Description string `json:"description"`
}

// Factory opens a Datasource. It must not return a half-open datasource on error.
type Factory func(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (Datasource, error)

// Registration pairs adapter info with its factory.
type Registration struct {
	Info    AdapterInfo
	Factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	_, ok := lookup(dsType)
	return ok
}

// DisplayName returns the human-readable name of a registered adapter type,
// or dsType itself when no adapter is registered for it.
func DisplayName(dsType string) string {
	if reg, ok := lookup(dsType); ok {
		return reg.Info.DisplayName
	}
	return dsType
}

func lookup(dsType string) (Registration, bool) {
	if canonical, ok := NormalizeType(dsType); ok {
		dsType = canonical
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[dsType]
	return reg, ok
}

// Open creates a datasource for cfg.Type and verifies it with TestConnection.
// Transient failures are retried with exponential backoff.
func Open(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (Datasource, error) {
	return OpenWithRetry(ctx, cfg, retry.DefaultConfig(), logger)
}

// OpenWithRetry is Open with an explicit retry policy.
func OpenWithRetry(ctx context.Context, cfg *ConnectionConfig, retryCfg *retry.Config, logger *zap.Logger) (Datasource, error) {
	reg, ok := lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", cfg.Type)
	}
	cfg.Type = reg.Info.Type

	ds, err := retry.DoWithResult(ctx, retryCfg, func() (Datasource, error) {
		ds, err := reg.Factory(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := ds.TestConnection(ctx); err != nil {
			_ = ds.Close()
			return nil, err
		}
		return ds, nil
	})
	if err != nil {
		logger.Error("Failed to open datasource",
			zap.String("type", cfg.Type),
			zap.String("target", cfg.Key()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("open %s datasource: %w", cfg.Type, err)
	}

	logger.Info("Datasource connected",
		zap.String("type", cfg.Type),
		zap.String("target", cfg.Key()))
	return ds, nil
}
