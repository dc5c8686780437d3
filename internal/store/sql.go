package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS workspace_kv (
		key        VARCHAR PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

const upsert = `
	INSERT INTO workspace_kv (key, value, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT (key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

// SQL stores values in a workspace_kv table of a DuckDB or SQLite database.
type SQL struct {
	db      *sql.DB
	dialect string
}

// NewSQL creates the table if needed. The store takes ownership of conn.
func NewSQL(ctx context.Context, conn *sql.DB, dialect string) (*SQL, error) {
	if _, err := conn.ExecContext(ctx, createTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: create workspace_kv: %w", dialect, err)
	}
	return &SQL{db: conn, dialect: dialect}, nil
}

// Dialect returns the backend name, "duckdb" or "sqlite".
func (s *SQL) Dialect() string { return s.dialect }

func (s *SQL) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM workspace_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: load %s: %w", s.dialect, key, err)
	}
	return []byte(value), true, nil
}

func (s *SQL) Save(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsert, key, string(value)); err != nil {
		return fmt.Errorf("%s: save %s: %w", s.dialect, key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspace_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%s: delete %s: %w", s.dialect, key, err)
	}
	return nil
}

func (s *SQL) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM workspace_kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("%s: list keys: %w", s.dialect, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQL) Close() error { return s.db.Close() }
