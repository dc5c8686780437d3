// Package store provides the string-keyed persistence port the workspace
// saves its state through, with memory, JSON file, DuckDB and SQLite
// backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joeblew999/geo-workspace/internal/db"
)

// Common errors.
var (
	ErrInvalidKey   = errors.New("invalid store key")
	ErrUnknownStore = errors.New("unknown store kind")
)

// Store is a string-keyed blob store.
type Store interface {
	// Load returns the value for key; ok is false if it was never saved.
	Load(ctx context.Context, key string) (value []byte, ok bool, err error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists the saved keys in lexical order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Kinds accepted by Open.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindDuckDB = "duckdb"
	KindSQLite = "sqlite"
)

// Kinds lists every backend Open understands.
var Kinds = []string{KindFile, KindMemory, KindDuckDB, KindSQLite}

// Open creates the backend named kind rooted at dataDir.
func Open(ctx context.Context, kind, dataDir string) (Store, error) {
	switch strings.ToLower(kind) {
	case KindMemory:
		return NewMemory(), nil
	case "", KindFile:
		return NewFile(dataDir), nil
	case KindDuckDB:
		conn, err := db.OpenDuckDB(db.Config{DataDir: dataDir})
		if err != nil {
			return nil, err
		}
		return NewSQL(ctx, conn, KindDuckDB)
	case KindSQLite:
		conn, err := db.OpenSQLite(db.Config{DataDir: dataDir})
		if err != nil {
			return nil, err
		}
		return NewSQL(ctx, conn, KindSQLite)
	}
	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownStore, kind, strings.Join(Kinds, ", "))
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
