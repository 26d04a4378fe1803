package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAction is returned when calling an action the store doesn't have.
	ErrUnknownAction = errors.New("chunk: unknown action")

	// ErrUnknownView is returned when selecting a view the store doesn't have.
	ErrUnknownView = errors.New("chunk: unknown view")

	// ErrUnknownField is returned when reading or writing a field that was
	// not part of the initial state.
	ErrUnknownField = errors.New("chunk: unknown field")

	// ErrNotParam is returned when arguments are passed to a view that
	// takes none.
	ErrNotParam = errors.New("chunk: view takes no arguments")

	// ErrTypeMismatch is returned by Value and Select when the stored value
	// does not have the requested type.
	ErrTypeMismatch = errors.New("chunk: type mismatch")

	// ErrDisposed is returned by WaitHydrated when the store was disposed
	// before hydration finished.
	ErrDisposed = errors.New("chunk: store disposed")
)

// PanicError wraps a panic recovered from an async action body.
type PanicError struct {
	Chunk  string
	Action string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("chunk: %s.%s panicked: %v", e.Chunk, e.Action, e.Value)
}

// Unwrap returns the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
