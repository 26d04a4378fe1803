package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

// SQLEngine is a SQL-backed engine.
// It works with any database/sql compatible driver (PostgreSQL, MySQL, SQLite).
// Requires a table with schema:
//
//	CREATE TABLE chunk_store (
//	    key VARCHAR(255) PRIMARY KEY,
//	    value TEXT NOT NULL,
//	    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
//
// EnsureSchema creates it when missing.
type SQLEngine struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	closed    atomic.Bool

	// ownsDB is set when the engine opened db itself and must close it.
	ownsDB bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// String returns the dialect name as used in config files.
func (d SQLDialect) String() string {
	switch d {
	case DialectPostgreSQL:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("SQLDialect(%d)", int(d))
	}
}

// ParseDialect maps a config name to a dialect.
func ParseDialect(name string) (SQLDialect, error) {
	switch name {
	case "postgres", "postgresql", "pgx":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return 0, fmt.Errorf("storage: unknown sql dialect %q", name)
}

// SQLEngineOption configures SQLEngine behavior.
type SQLEngineOption func(*sqlEngineConfig)

type sqlEngineConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name for stored values.
// Default: "chunk_store".
func WithSQLTableName(name string) SQLEngineOption {
	return func(c *sqlEngineConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLEngineOption {
	return func(c *sqlEngineConfig) {
		c.dialect = dialect
	}
}

// NewSQLEngine creates a new SQL-backed engine.
func NewSQLEngine(db *sql.DB, opts ...SQLEngineOption) *SQLEngine {
	cfg := &sqlEngineConfig{
		tableName: "chunk_store",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLEngine{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLEngine) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgreSQL:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

func (s *SQLEngine) opErr(op, key string, err error) error {
	return &OpError{Op: op, Backend: "sql", Key: key, Err: err}
}

// Set upserts value under key.
func (s *SQLEngine) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = NOW()
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf("\n"+
			"INSERT INTO %s (`key`, value, updated_at)\n"+
			"VALUES (?, ?, NOW())\n"+
			"ON DUPLICATE KEY UPDATE\n"+
			"	value = VALUES(value),\n"+
			"	updated_at = NOW()\n", s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (key, value, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return s.opErr("set", key, err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *SQLEngine) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}

	query := fmt.Sprintf(`SELECT value FROM %s WHERE %s = %s`, s.tableName, s.keyColumn(), s.placeholder(1))

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, s.opErr("get", key, err)
	}
	return value, true, nil
}

// Remove deletes key.
func (s *SQLEngine) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`, s.tableName, s.keyColumn(), s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return s.opErr("remove", key, err)
	}
	return nil
}

// Clear deletes every row in the table.
func (s *SQLEngine) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.tableName)); err != nil {
		return s.opErr("clear", "", err)
	}
	return nil
}

// keyColumn quotes the key column where the dialect reserves the word.
func (s *SQLEngine) keyColumn() string {
	if s.dialect == DialectMySQL {
		return "`key`"
	}
	return "key"
}

// Close marks the engine as closed.
// A database handed to NewSQLEngine may be shared with other components and
// is left open. One opened by Open from a config is closed here.
func (s *SQLEngine) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// EnsureSchema creates the table if it doesn't exist.
func (s *SQLEngine) EnsureSchema(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key VARCHAR(255) PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf("\n"+
			"CREATE TABLE IF NOT EXISTS %s (\n"+
			"	`key` VARCHAR(255) PRIMARY KEY,\n"+
			"	value LONGTEXT NOT NULL,\n"+
			"	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP\n"+
			")\n", s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TEXT DEFAULT (datetime('now'))
			)
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return s.opErr("schema", "", err)
	}
	return nil
}

// TableName returns the configured table name.
func (s *SQLEngine) TableName() string {
	return s.tableName
}

var (
	_ Engine  = (*SQLEngine)(nil)
	_ Getter  = (*SQLEngine)(nil)
	_ Clearer = (*SQLEngine)(nil)
)
