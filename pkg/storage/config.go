package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Engine kinds accepted in Config.Kind.
const (
	KindNone   = "none"
	KindMemory = "memory"
	KindSQL    = "sql"
	KindRedis  = "redis"
	KindS3     = "s3"
)

// Config selects and configures an engine.
//
// Example storage.toml:
//
//	kind = "sql"
//
//	[sql]
//	driver = "sqlite3"
//	dsn = "state.db"
//	table = "chunk_store"
type Config struct {
	Kind  string      `toml:"kind"`
	SQL   SQLConfig   `toml:"sql"`
	Redis RedisConfig `toml:"redis"`
	S3    S3Config    `toml:"s3"`
}

// SQLConfig configures the SQL engine.
type SQLConfig struct {
	Driver  string `toml:"driver"`
	DSN     string `toml:"dsn"`
	Table   string `toml:"table"`
	Dialect string `toml:"dialect"`
}

// RedisConfig configures the Redis engine.
type RedisConfig struct {
	Prefix string `toml:"prefix"`
}

// S3Config configures the S3 engine.
type S3Config struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

// DefaultConfig returns the configuration used for keys a file leaves out.
func DefaultConfig() Config {
	return Config{
		Kind: KindMemory,
		SQL: SQLConfig{
			Driver: "sqlite3",
			Table:  "chunk_store",
		},
		Redis: RedisConfig{
			Prefix: "chunk:",
		},
	}
}

// LoadConfig reads a TOML file and overlays it on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load storage config: %w", err)
	}

	if meta.IsDefined("kind") {
		cfg.Kind = strings.ToLower(strings.TrimSpace(raw.Kind))
	}
	if meta.IsDefined("sql", "driver") {
		cfg.SQL.Driver = strings.TrimSpace(raw.SQL.Driver)
	}
	if meta.IsDefined("sql", "dsn") {
		cfg.SQL.DSN = strings.TrimSpace(raw.SQL.DSN)
	}
	if meta.IsDefined("sql", "table") {
		cfg.SQL.Table = strings.TrimSpace(raw.SQL.Table)
	}
	if meta.IsDefined("sql", "dialect") {
		cfg.SQL.Dialect = strings.TrimSpace(raw.SQL.Dialect)
	}
	if meta.IsDefined("redis", "prefix") {
		cfg.Redis.Prefix = raw.Redis.Prefix
	}
	if meta.IsDefined("s3", "bucket") {
		cfg.S3.Bucket = strings.TrimSpace(raw.S3.Bucket)
	}
	if meta.IsDefined("s3", "prefix") {
		cfg.S3.Prefix = raw.S3.Prefix
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load storage config: unknown key %q", undecoded[0].String())
	}

	return cfg, nil
}

// Clients carries the pre-built clients that Open cannot construct itself.
type Clients struct {
	// DB is used by the sql kind instead of opening Driver/DSN.
	DB    *sql.DB
	Redis RedisClient
	S3    S3API
}

// Open builds the engine described by cfg.
// The sql kind opens its own database from Driver and DSN unless
// clients.DB is set; a database opened here is closed by the engine's Close.
// redis and s3 need their client in clients.
func Open(ctx context.Context, cfg Config, clients Clients) (Engine, error) {
	switch cfg.Kind {
	case "", KindNone:
		return NopEngine{}, nil

	case KindMemory:
		return NewMemoryEngine(), nil

	case KindSQL:
		return openSQL(ctx, cfg.SQL, clients.DB)

	case KindRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("%w: redis", ErrMissingClient)
		}
		return NewRedisEngine(clients.Redis, WithRedisPrefix(cfg.Redis.Prefix)), nil

	case KindS3:
		if clients.S3 == nil {
			return nil, fmt.Errorf("%w: s3", ErrMissingClient)
		}
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 bucket is required")
		}
		return NewS3Engine(clients.S3, cfg.S3.Bucket, cfg.S3.Prefix), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
}

func openSQL(ctx context.Context, cfg SQLConfig, db *sql.DB) (Engine, error) {
	dialectName := cfg.Dialect
	if dialectName == "" {
		dialectName = cfg.Driver
	}
	dialect, err := ParseDialect(dialectName)
	if err != nil {
		return nil, err
	}

	var opts []SQLEngineOption
	if cfg.Table != "" {
		opts = append(opts, WithSQLTableName(cfg.Table))
	}

	owned := false
	if db == nil {
		if dialect == DialectSQLite && (cfg.Driver == "" || cfg.Driver == "sqlite3") {
			engine, _, err := OpenSQLite(ctx, cfg.DSN, opts...)
			if err != nil {
				return nil, err
			}
			engine.ownsDB = true
			return engine, nil
		}
		db, err = sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, &OpError{Op: "open", Backend: "sql", Err: err}
		}
		owned = true
	}

	engine := NewSQLEngine(db, append(opts, WithSQLDialect(dialect))...)
	engine.ownsDB = owned
	if err := engine.EnsureSchema(ctx); err != nil {
		if owned {
			_ = db.Close()
		}
		return nil, err
	}
	return engine, nil
}
