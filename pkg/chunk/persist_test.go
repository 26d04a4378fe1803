package chunk

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/chunk/pkg/storage"
)

func persistedConfig() Config {
	return Config{
		Name:         "todo",
		InitialState: map[string]any{"count": 0, "title": "untitled", "draft": ""},
		Actions: func(s *Store) map[string]Action {
			return map[string]Action{
				"rename": Sync(func(args ...any) (any, error) {
					_ = s.Set("title", args[0])
					_ = s.Set("count", 100)
					return nil, nil
				}),
			}
		},
		Persist: []string{"count", "title"},
	}
}

func readEnvelope(t *testing.T, engine *storage.MemoryEngine, key string) map[string]string {
	t.Helper()
	raw, ok, err := engine.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("engine.Get(%s) = %v, %v", key, ok, err)
	}
	var envelope map[string]string
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatalf("stored value is not an envelope: %v (%s)", err, raw)
	}
	return envelope
}

func TestPersist_RoundTrip(t *testing.T) {
	engine := storage.NewMemoryEngine()

	first := newTestStore(t, persistedConfig(), WithEngine(engine))
	flush(t, first)
	if _, err := first.Call("setCount", 7); err != nil {
		t.Fatalf("setCount: %v", err)
	}
	if _, err := first.Call("setTitle", "groceries"); err != nil {
		t.Fatalf("setTitle: %v", err)
	}
	_ = first.Set("draft", "not persisted")
	flush(t, first)
	first.Dispose()

	envelope := readEnvelope(t, engine, "todoStore")
	if envelope["count"] != "7" || envelope["title"] != `"groceries"` {
		t.Fatalf("envelope = %v", envelope)
	}
	if _, ok := envelope["draft"]; ok {
		t.Fatal("non-persisted field written")
	}

	second := newTestStore(t, persistedConfig(), WithEngine(engine))
	waitHydrated(t, second)

	if second.Phase() != PhaseSteady {
		t.Fatalf("Phase() = %v, want steady", second.Phase())
	}
	count, err := Value[int](second, "count")
	if err != nil || count != 7 {
		t.Fatalf("hydrated count = %v, %v; want int 7", count, err)
	}
	if second.Get("title") != "groceries" {
		t.Fatalf("hydrated title = %v", second.Get("title"))
	}
	if second.Get("draft") != "" {
		t.Fatalf("draft should keep its initial value, got %v", second.Get("draft"))
	}
}

func TestPersist_BaselineWrittenOnSteady(t *testing.T) {
	engine := storage.NewMemoryEngine()
	s := newTestStore(t, persistedConfig(), WithEngine(engine))
	flush(t, s)

	if engine.Writes() != 1 {
		t.Fatalf("writes = %d, want the baseline write only", engine.Writes())
	}
	envelope := readEnvelope(t, engine, "todoStore")
	if envelope["count"] != "0" || envelope["title"] != `"untitled"` {
		t.Fatalf("baseline envelope = %v", envelope)
	}
}

func TestPersist_OneWritePerTransaction(t *testing.T) {
	engine := storage.NewMemoryEngine()
	s := newTestStore(t, persistedConfig(), WithEngine(engine))
	flush(t, s)

	if _, err := s.Call("rename", "chores"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	flush(t, s)

	if engine.Writes() != 2 {
		t.Fatalf("writes = %d, want baseline + one for the transaction", engine.Writes())
	}
	envelope := readEnvelope(t, engine, "todoStore")
	if envelope["count"] != "100" || envelope["title"] != `"chores"` {
		t.Fatalf("envelope = %v", envelope)
	}
}

func TestPersist_WritesInOrderWithoutCoalescing(t *testing.T) {
	engine := storage.NewMemoryEngine()
	s := newTestStore(t, persistedConfig(), WithEngine(engine))
	flush(t, s)

	for i := 1; i <= 3; i++ {
		if _, err := s.Call("setCount", i); err != nil {
			t.Fatalf("setCount: %v", err)
		}
	}
	flush(t, s)

	if engine.Writes() != 4 {
		t.Fatalf("writes = %d, want 4", engine.Writes())
	}
	if got := readEnvelope(t, engine, "todoStore")["count"]; got != "3" {
		t.Fatalf("last write count = %s, want 3", got)
	}
}

func TestPersist_UnpersistedFieldDoesNotWrite(t *testing.T) {
	engine := storage.NewMemoryEngine()
	s := newTestStore(t, persistedConfig(), WithEngine(engine))
	flush(t, s)

	_ = s.Set("draft", "scratch")
	flush(t, s)

	if engine.Writes() != 1 {
		t.Fatalf("writes = %d, want 1", engine.Writes())
	}
}

func TestPersist_DisposeStopsWrites(t *testing.T) {
	engine := storage.NewMemoryEngine()
	s := newTestStore(t, persistedConfig(), WithEngine(engine))
	flush(t, s)

	s.Dispose()
	_ = s.Set("count", 55)
	flush(t, s)

	if engine.Writes() != 1 {
		t.Fatalf("writes = %d after Dispose, want 1", engine.Writes())
	}
	if got := readEnvelope(t, engine, "todoStore")["count"]; got != "0" {
		t.Fatalf("stored count = %s, want 0", got)
	}
}

func TestPersist_DisposeDuringHydration(t *testing.T) {
	engine := newBlockingEngine()
	_ = engine.MemoryEngine.Set(context.Background(), "todoStore", `{"count":"9"}`)

	s := New(persistedConfig(), WithInterceptors(NewInterceptors()), WithEngine(engine))
	if s.Phase() != PhaseHydrating {
		t.Fatalf("Phase() = %v, want hydrating", s.Phase())
	}

	s.Dispose()
	close(engine.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitHydrated(ctx); err != ErrDisposed {
		t.Fatalf("WaitHydrated = %v, want ErrDisposed", err)
	}

	_ = s.Set("count", 1)
	flush(t, s)

	if engine.Writes() != 1 {
		t.Fatalf("writes = %d, want only the seeded value", engine.Writes())
	}
	if s.Phase() != PhaseDisposed {
		t.Fatalf("Phase() = %v", s.Phase())
	}
}

func TestHydrate_LenientDecode(t *testing.T) {
	engine := storage.NewMemoryEngine()
	_ = engine.Set(context.Background(), "todoStore", `{"count":"5","title":"plain text, not JSON"}`)

	logger, logs := newTestLogger()
	s := newTestStore(t, persistedConfig(), WithEngine(engine), WithLogger(logger))
	waitHydrated(t, s)

	if n, err := Value[int](s, "count"); err != nil || n != 5 {
		t.Fatalf("count = %v, %v; want int 5", n, err)
	}
	if s.Get("title") != "plain text, not JSON" {
		t.Fatalf("title = %v, want the raw string", s.Get("title"))
	}
	if !strings.Contains(logs.String(), "decoded leniently") {
		t.Fatalf("lenient decode not logged: %s", logs.String())
	}
}

func TestHydrate_UnknownPersistKeyIgnored(t *testing.T) {
	engine := storage.NewMemoryEngine()
	_ = engine.Set(context.Background(), "todoStore", `{"count":"3","ghost":"1","draft":"\"x\""}`)

	cfg := persistedConfig()
	cfg.Persist = []string{"count", "ghost", "count"}
	s := newTestStore(t, cfg, WithEngine(engine))
	waitHydrated(t, s)

	if s.Get("count") != 3 {
		t.Fatalf("count = %v, want 3", s.Get("count"))
	}
	if s.Get("draft") != "" {
		t.Fatal("fields outside the persist list must not be hydrated")
	}
	if _, ok := s.Lookup("ghost"); ok {
		t.Fatal("unknown persist key must not create a field")
	}

	flush(t, s)
	envelope := readEnvelope(t, engine, "todoStore")
	if len(envelope) != 1 || envelope["count"] != "3" {
		t.Fatalf("envelope = %v, want only count", envelope)
	}
}

func TestHydrate_MalformedEnvelopeKeepsInitialState(t *testing.T) {
	engine := storage.NewMemoryEngine()
	_ = engine.Set(context.Background(), "todoStore", `not json at all`)

	s := newTestStore(t, persistedConfig(), WithEngine(engine))
	waitHydrated(t, s)

	if s.Get("count") != 0 || s.Get("title") != "untitled" {
		t.Fatalf("state changed by malformed snapshot: %v", s.Snapshot())
	}
	if s.Phase() != PhaseSteady {
		t.Fatalf("Phase() = %v", s.Phase())
	}
}

func TestHydrate_EngineErrorStillReachesSteady(t *testing.T) {
	engine := &failingEngine{}
	logger, logs := newTestLogger()
	s := newTestStore(t, persistedConfig(), WithEngine(engine), WithLogger(logger))
	waitHydrated(t, s)
	flush(t, s)

	if s.Phase() != PhaseSteady {
		t.Fatalf("Phase() = %v", s.Phase())
	}
	out := logs.String()
	if !strings.Contains(out, "hydrate failed") || !strings.Contains(out, "persist failed") {
		t.Fatalf("engine errors not logged: %s", out)
	}

	engine.mu.Lock()
	sets := engine.sets
	engine.mu.Unlock()
	if sets != 1 {
		t.Fatalf("Set called %d times, failed writes must not be retried", sets)
	}
}

func TestPersist_WriteOnlyEngineSkipsHydration(t *testing.T) {
	engine := &writeOnlyEngine{}
	s := newTestStore(t, persistedConfig(), WithEngine(engine))

	if s.Phase() != PhaseSteady {
		t.Fatalf("Phase() = %v, want steady immediately", s.Phase())
	}
	_, _ = s.Call("setCount", 2)
	flush(t, s)

	if engine.count() != 2 {
		t.Fatalf("writes = %d, want 2", engine.count())
	}
}

func TestPersist_NoPersistedFields(t *testing.T) {
	engine := storage.NewMemoryEngine()
	cfg := persistedConfig()
	cfg.Persist = []string{"ghost"}
	s := newTestStore(t, cfg, WithEngine(engine))
	flush(t, s)

	_, _ = s.Call("setCount", 2)
	if engine.Writes() != 0 {
		t.Fatalf("writes = %d, want 0", engine.Writes())
	}
}

func TestClearPersisted(t *testing.T) {
	engine := storage.NewMemoryEngine()
	s := newTestStore(t, persistedConfig(), WithEngine(engine))
	flush(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ClearPersisted(ctx); err != nil {
		t.Fatalf("ClearPersisted: %v", err)
	}
	if _, ok, _ := engine.Get(ctx, "todoStore"); ok {
		t.Fatal("snapshot still stored")
	}

	s.Dispose()
	if err := s.ClearPersisted(ctx); err != ErrDisposed {
		t.Fatalf("ClearPersisted after Dispose = %v, want ErrDisposed", err)
	}
}

func TestPersist_HydratedCompositeTypes(t *testing.T) {
	type item struct {
		Name string `json:"name"`
		Done bool   `json:"done"`
	}
	cfg := Config{
		Name:         "list",
		InitialState: map[string]any{"items": []item{}, "tags": map[string]int{}},
		Persist:      []string{"items", "tags"},
	}
	engine := storage.NewMemoryEngine()

	first := newTestStore(t, cfg, WithEngine(engine))
	flush(t, first)
	_ = first.Set("items", []item{{Name: "milk"}, {Name: "eggs", Done: true}})
	_ = first.Set("tags", map[string]int{"food": 2})
	flush(t, first)
	first.Dispose()

	second := newTestStore(t, cfg, WithEngine(engine))
	waitHydrated(t, second)

	items, err := Value[[]item](second, "items")
	if err != nil || len(items) != 2 || !items[1].Done {
		t.Fatalf("items = %v, %v", items, err)
	}
	tags, err := Value[map[string]int](second, "tags")
	if err != nil || tags["food"] != 2 {
		t.Fatalf("tags = %v, %v", tags, err)
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		current any
		want    any
		exact   bool
	}{
		{"int kept", "5", 0, 5, true},
		{"string", `"hi"`, "", "hi", true},
		{"null", "null", 3, nil, true},
		{"generic without current", "[1,2]", nil, []any{1.0, 2.0}, true},
		{"type changed", `"five"`, 0, "five", false},
		{"raw fallback", "oops{", 0, "oops{", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, exact := decodeValue(tt.text, tt.current)
			if exact != tt.exact {
				t.Errorf("exact = %v, want %v", exact, tt.exact)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
		})
	}
}
