// Package database opens and migrates the local SQLite stores that hold
// training data and, optionally, conversation transcripts.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// DB wraps a SQLite handle.
type DB struct {
	*sql.DB
	Path string
}

// Open opens (creating if needed) the SQLite file at path and applies all
// pending migrations. ":memory:" opens a private in-memory database, kept
// alive by the single pooled connection.
func Open(ctx context.Context, path string, logger *zap.Logger) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := ":memory:?_foreign_keys=on"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
			}
		}
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", path, err)
	}

	if err := RunMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{DB: db, Path: path}, nil
}
