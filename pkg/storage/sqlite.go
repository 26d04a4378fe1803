package storage

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (creating if needed) a SQLite database at path and
// returns an engine backed by it with its table in place.
// Use ":memory:" for a throwaway database; the pool is then limited to one
// connection so every query sees the same in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLEngineOption) (*SQLEngine, *sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, &OpError{Op: "open", Backend: "sqlite", Err: err}
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	opts = append([]SQLEngineOption{WithSQLDialect(DialectSQLite)}, opts...)
	engine := NewSQLEngine(db, opts...)
	if err := engine.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return engine, db, nil
}
