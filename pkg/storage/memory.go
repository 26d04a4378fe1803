package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryEngine is an in-memory engine implementation.
// It's suitable for tests and single-process programs; values are lost
// when the process exits.
type MemoryEngine struct {
	mu     sync.RWMutex
	values map[string]string
	writes int
	closed bool
}

// NewMemoryEngine creates a new in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		values: make(map[string]string),
	}
}

// Set stores value under key.
func (m *MemoryEngine) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.values[key] = value
	m.writes++
	return nil
}

// Get returns the value stored under key.
func (m *MemoryEngine) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}

	v, ok := m.values[key]
	return v, ok, nil
}

// Remove deletes key.
func (m *MemoryEngine) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.values, key)
	return nil
}

// Clear drops every key.
func (m *MemoryEngine) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.values = make(map[string]string)
	return nil
}

// Close shuts down the engine. Later operations return ErrClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.values = nil
	return nil
}

// Keys returns the stored keys in sorted order.
// This is for monitoring/testing purposes.
func (m *MemoryEngine) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes returns how many successful Set calls the engine has served.
func (m *MemoryEngine) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

var (
	_ Engine  = (*MemoryEngine)(nil)
	_ Getter  = (*MemoryEngine)(nil)
	_ Clearer = (*MemoryEngine)(nil)
)
