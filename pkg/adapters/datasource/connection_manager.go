package datasource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
)

const (
	DefaultConnectionTTL   = 5 * time.Minute
	DefaultCleanupInterval = 1 * time.Minute
	DefaultMaxConnections  = 20
	healthCheckTimeout     = 5 * time.Second
)

// OpenFunc opens a datasource; Open is the production implementation.
type OpenFunc func(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (Datasource, error)

// ConnectionManagerConfig holds configuration for the connection manager.
type ConnectionManagerConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxConnections  int
}

// ConnectionManager caches datasources opened from ad-hoc connection strings
// (database profiling) so repeated requests reuse one pool. Idle entries are
// closed after the TTL by a background goroutine.
type ConnectionManager struct {
	mu             sync.Mutex
	connections    map[string]*managedConnection
	ttl            time.Duration
	maxConnections int
	open           OpenFunc
	stopped        bool
	stopChan       chan struct{}
	logger         *zap.Logger
}

type managedConnection struct {
	ds       Datasource
	target   string
	lastUsed time.Time
}

// NewConnectionManager creates a connection manager and starts its cleanup loop.
// A nil open uses Open.
func NewConnectionManager(cfg ConnectionManagerConfig, open OpenFunc, logger *zap.Logger) *ConnectionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConnectionTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if open == nil {
		open = Open
	}

	m := &ConnectionManager{
		connections:    make(map[string]*managedConnection),
		ttl:            cfg.TTL,
		maxConnections: cfg.MaxConnections,
		open:           open,
		stopChan:       make(chan struct{}),
		logger:         logger.Named("connections"),
	}

	go m.cleanupLoop(cfg.CleanupInterval)
	return m
}

// poolKey includes a password digest so different credentials never share a pool.
func poolKey(cfg *ConnectionConfig) string {
	sum := sha256.Sum256([]byte(cfg.Password))
	return cfg.Key() + "#" + hex.EncodeToString(sum[:8])
}

// Get returns a healthy cached datasource for cfg, opening one when needed.
// Callers must not Close the returned datasource; the manager owns it.
func (m *ConnectionManager) Get(ctx context.Context, cfg *ConnectionConfig) (Datasource, error) {
	key := poolKey(cfg)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, fmt.Errorf("connection manager is closed")
	}
	managed, exists := m.connections[key]
	m.mu.Unlock()

	if exists {
		healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := managed.ds.TestConnection(healthCtx)
		cancel()
		if err == nil {
			m.mu.Lock()
			managed.lastUsed = time.Now()
			m.mu.Unlock()
			return managed.ds, nil
		}

		m.logger.Warn("Cached connection unhealthy, reopening",
			zap.String("target", managed.target),
			zap.String("error", logging.SanitizeError(err)))
		m.remove(key, managed)
	}

	ds, err := m.open(ctx, cfg, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		_ = ds.Close()
		return nil, fmt.Errorf("connection manager is closed")
	}
	// Another caller may have opened the same target meanwhile.
	if existing, ok := m.connections[key]; ok {
		_ = ds.Close()
		existing.lastUsed = time.Now()
		return existing.ds, nil
	}
	if len(m.connections) >= m.maxConnections {
		m.evictOldestLocked()
	}

	m.connections[key] = &managedConnection{ds: ds, target: cfg.Key(), lastUsed: time.Now()}
	m.logger.Info("Opened pooled connection",
		zap.String("target", cfg.Key()),
		zap.Int("total", len(m.connections)))
	return ds, nil
}

func (m *ConnectionManager) remove(key string, managed *managedConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.connections[key]; ok && current == managed {
		delete(m.connections, key)
		_ = managed.ds.Close()
	}
}

// evictOldestLocked closes the least recently used connection. Caller holds m.mu.
func (m *ConnectionManager) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, managed := range m.connections {
		if oldestKey == "" || managed.lastUsed.Before(oldest) {
			oldestKey, oldest = key, managed.lastUsed
		}
	}
	if oldestKey != "" {
		_ = m.connections[oldestKey].ds.Close()
		delete(m.connections, oldestKey)
	}
}

func (m *ConnectionManager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup(time.Now())
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup closes connections idle for longer than the TTL.
func (m *ConnectionManager) performCleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	expired := 0
	for key, managed := range m.connections {
		if now.Sub(managed.lastUsed) > m.ttl {
			_ = managed.ds.Close()
			delete(m.connections, key)
			expired++
		}
	}

	if expired > 0 {
		m.logger.Info("Cleaned up idle connections",
			zap.Int("count", expired),
			zap.Int("remaining", len(m.connections)))
	}
}

// Len returns the number of cached connections.
func (m *ConnectionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// Close closes all connections and stops the cleanup goroutine. Idempotent.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.stopChan)

	for _, managed := range m.connections {
		_ = managed.ds.Close()
	}
	m.connections = make(map[string]*managedConnection)
	return nil
}
