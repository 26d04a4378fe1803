package chunk

import (
	"context"
	"sync"
)

// Operation is the handle of one async action invocation.
type Operation struct {
	chunk  string
	action string

	done   chan struct{}
	once   sync.Once
	result any
	err    error
}

func newOperation(chunk, action string) *Operation {
	return &Operation{
		chunk:  chunk,
		action: action,
		done:   make(chan struct{}),
	}
}

// Action returns the invoked action's name.
func (op *Operation) Action() string {
	return op.action
}

// Done returns a channel closed when the operation settles.
func (op *Operation) Done() <-chan struct{} {
	return op.done
}

// Wait blocks until the operation settles or ctx ends.
// A ctx error does not cancel the operation.
func (op *Operation) Wait(ctx context.Context) (any, error) {
	select {
	case <-op.done:
		return op.result, op.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. settled is false while the
// operation is still running.
func (op *Operation) Result() (result any, settled bool, err error) {
	select {
	case <-op.done:
		return op.result, true, op.err
	default:
		return nil, false, nil
	}
}

func (op *Operation) settle(result any, err error) {
	op.once.Do(func() {
		op.result = result
		op.err = err
		close(op.done)
	})
}

// Chunk returns the name of the store the action belongs to.
func (op *Operation) Chunk() string {
	return op.chunk
}
