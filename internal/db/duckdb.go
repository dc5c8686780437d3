// Package db opens the embedded SQL databases the workspace can persist
// into: DuckDB and SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir string
	DBName  string
}

func (c Config) name() string {
	if c.DBName == "" {
		return "workspace"
	}
	return c.DBName
}

// OpenDuckDB opens (creating if needed) <DataDir>/duckdb/<DBName>.duckdb.
func OpenDuckDB(cfg Config) (*sql.DB, error) {
	if cfg.DataDir == "" {
		return sql.Open("duckdb", "")
	}

	// Create duckdb subdirectory
	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	dbPath := filepath.Join(duckdbDir, cfg.name()+".duckdb")
	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", dbPath, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open duckdb %s: %w", dbPath, err)
	}
	return conn, nil
}
