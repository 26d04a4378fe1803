package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func openTestSQLite(t *testing.T, opts ...SQLEngineOption) *SQLEngine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	engine, db, err := OpenSQLite(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return engine
}

func TestSQLEngineSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := openTestSQLite(t)

	if _, ok, err := e.Get(ctx, "todoStore"); ok || err != nil {
		t.Fatalf("Get on empty table = %v, %v", ok, err)
	}

	if err := e.Set(ctx, "todoStore", `{"todos":"[]"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set(ctx, "todoStore", `{"todos":"[\"a\"]"}`); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	v, ok, err := e.Get(ctx, "todoStore")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if v != `{"todos":"[\"a\"]"}` {
		t.Fatalf("Get = %q, want the last write", v)
	}

	if err := e.Remove(ctx, "todoStore"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := e.Get(ctx, "todoStore"); ok {
		t.Fatal("row still present after Remove")
	}
}

func TestSQLEngineClear(t *testing.T) {
	ctx := context.Background()
	e := openTestSQLite(t, WithSQLTableName("custom_state"))
	if e.TableName() != "custom_state" {
		t.Fatalf("TableName() = %q", e.TableName())
	}

	_ = e.Set(ctx, "a", "1")
	_ = e.Set(ctx, "b", "2")
	if err := e.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := e.Get(ctx, "a"); ok {
		t.Fatal("Clear left rows behind")
	}
}

func TestSQLEngineEnsureSchemaIdempotent(t *testing.T) {
	e := openTestSQLite(t)
	if err := e.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

func TestSQLEngineClosed(t *testing.T) {
	e := openTestSQLite(t)
	_ = e.Close()
	if err := e.Set(context.Background(), "k", "v"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Set after Close = %v", err)
	}
}

func TestSQLEnginePlaceholders(t *testing.T) {
	pg := NewSQLEngine(nil)
	if pg.placeholder(2) != "$2" {
		t.Fatalf("postgres placeholder = %q", pg.placeholder(2))
	}
	my := NewSQLEngine(nil, WithSQLDialect(DialectMySQL))
	if my.placeholder(2) != "?" {
		t.Fatalf("mysql placeholder = %q", my.placeholder(2))
	}
	if !strings.Contains(my.keyColumn(), "`") {
		t.Fatalf("mysql key column should be quoted, got %s", my.keyColumn())
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		name string
		want SQLDialect
	}{
		{"postgres", DialectPostgreSQL},
		{"pgx", DialectPostgreSQL},
		{"mysql", DialectMySQL},
		{"sqlite3", DialectSQLite},
		{"sqlite", DialectSQLite},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ParseDialect(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("ParseDialect(oracle) should fail")
	}
	if DialectSQLite.String() != "sqlite" {
		t.Errorf("String() = %q", DialectSQLite.String())
	}
}
