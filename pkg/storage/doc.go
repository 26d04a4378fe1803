// Package storage defines the key/value engine contract that chunk stores
// persist to, and ships adapters for common backends.
//
// Stores call Set for every snapshot, Get once at startup when the engine
// implements Getter, and Remove only from Store.ClearPersisted. Clear is
// for application code such as logout flows.
//
//	engine := storage.NewMemoryEngine()
//	chunk.ConfigureEngine(engine)
//
// Backends:
//   - MemoryEngine: process-local map, used by tests and single-process programs
//   - SQLEngine: any database/sql driver (PostgreSQL, MySQL, SQLite)
//   - RedisEngine: any client satisfying RedisClient
//   - S3Engine: AWS S3 (or compatible) via aws-sdk-go-v2
//
// Engines can also be described in a TOML file and opened with LoadConfig
// and Open.
package storage
