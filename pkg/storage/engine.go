package storage

import "context"

// Engine is the minimal persistence capability a store needs.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Getter is implemented by engines that can read values back.
// Engines without it are write-only: stores using them skip hydration.
type Getter interface {
	// Get returns the value stored under key.
	// Returns ("", false, nil) if the key doesn't exist.
	Get(ctx context.Context, key string) (string, bool, error)
}

// Clearer is implemented by engines that can drop every key they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// NopEngine discards writes and never has anything to read.
// It is the default engine until one is configured.
type NopEngine struct{}

// Set implements Engine.
func (NopEngine) Set(context.Context, string, string) error { return nil }

// Remove implements Engine.
func (NopEngine) Remove(context.Context, string) error { return nil }

// Get implements Getter.
func (NopEngine) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Clear implements Clearer.
func (NopEngine) Clear(context.Context) error { return nil }

var (
	_ Engine  = NopEngine{}
	_ Getter  = NopEngine{}
	_ Clearer = NopEngine{}
)
