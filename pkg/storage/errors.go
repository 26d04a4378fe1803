package storage

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when operations are attempted on a closed engine.
var ErrClosed = errors.New("storage: engine is closed")

// ErrUnknownKind is returned by Open for an unsupported engine kind.
var ErrUnknownKind = errors.New("storage: unknown engine kind")

// ErrMissingClient is returned by Open when a config names a backend whose
// client was not supplied in Clients.
var ErrMissingClient = errors.New("storage: backend client not provided")

// OpError records a failed engine operation together with the key involved.
type OpError struct {
	Op      string // "get", "set", "remove" or "clear"
	Backend string
	Key     string
	Err     error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OpError) Unwrap() error {
	return e.Err
}
