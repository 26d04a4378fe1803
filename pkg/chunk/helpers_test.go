package chunk

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/chunk/pkg/storage"
)

// newTestStore builds a store with its own interceptor registry and an
// in-memory engine unless opts say otherwise.
func newTestStore(t *testing.T, cfg Config, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithInterceptors(NewInterceptors()),
		WithEngine(storage.NopEngine{}),
	}
	s := New(cfg, append(base, opts...)...)
	t.Cleanup(s.Dispose)
	return s
}

func waitHydrated(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitHydrated(ctx); err != nil {
		t.Fatalf("WaitHydrated: %v", err)
	}
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// syncBuffer is a log sink safe for the store's background goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	sink := &syncBuffer{}
	return slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug})), sink
}

// writeOnlyEngine records writes and cannot be read from.
type writeOnlyEngine struct {
	mu     sync.Mutex
	writes []string
}

func (e *writeOnlyEngine) Set(ctx context.Context, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writes = append(e.writes, value)
	return nil
}

func (e *writeOnlyEngine) Remove(ctx context.Context, key string) error { return nil }

func (e *writeOnlyEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.writes)
}

var errEngineDown = errors.New("engine down")

// failingEngine fails every call.
type failingEngine struct {
	mu   sync.Mutex
	sets int
}

func (e *failingEngine) Set(ctx context.Context, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sets++
	return errEngineDown
}

func (e *failingEngine) Remove(ctx context.Context, key string) error { return errEngineDown }

func (e *failingEngine) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errEngineDown
}

// blockingEngine holds Get until release is closed.
type blockingEngine struct {
	*storage.MemoryEngine
	release chan struct{}
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{
		MemoryEngine: storage.NewMemoryEngine(),
		release:      make(chan struct{}),
	}
}

func (e *blockingEngine) Get(ctx context.Context, key string) (string, bool, error) {
	select {
	case <-e.release:
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
	return e.MemoryEngine.Get(ctx, key)
}
