package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"confix/internal/platform/config"

	_ "github.com/mattn/go-sqlite3"
)

// NewDB opens the sqlite store. A "file:" prefix is stripped; ":memory:" is pinned to one connection
// because every sqlite connection would otherwise see its own empty database.
func NewDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := strings.TrimPrefix(cfg.URL, "file:")
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	if dsn != ":memory:" {
		file := dsn
		if i := strings.IndexByte(file, '?'); i >= 0 {
			file = file[:i]
		}
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		maxConns := cfg.MaxConnections
		if maxConns <= 0 {
			maxConns = 1
		}
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
