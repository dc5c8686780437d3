package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// OpenSQLite opens (creating if needed) <DataDir>/sqlite/<DBName>.db.
func OpenSQLite(cfg Config) (*sql.DB, error) {
	dsn := ":memory:"
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "sqlite")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		dsn = filepath.Join(dir, cfg.name()+".db")
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if cfg.DataDir == "" {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	for _, p := range sqlitePragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return conn, nil
}
