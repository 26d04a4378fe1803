package chunk

import (
	"context"
	"sync"
)

// ActionContext describes one action invocation as seen by interceptors.
type ActionContext struct {
	// Chunk is the store name.
	Chunk string
	// Action is the action name.
	Action string
	// Args are the arguments the body will receive. Interceptors may
	// replace them before calling next.
	Args []any
	// Store is the store the action belongs to.
	Store *Store
	// CallID is unique per invocation.
	CallID string
	// Async reports whether the action was declared with Async.
	Async bool
	// Context is passed to async bodies. Interceptors may replace it.
	Context context.Context
}

// Interceptor wraps an action invocation. Calling next runs the rest of the
// chain and then the action; not calling it skips both, and whatever the
// interceptor returns becomes the action's result.
type Interceptor func(ac *ActionContext, next func() (any, error)) (any, error)

// Interceptors is an ordered interceptor registry.
// It is safe for concurrent use.
type Interceptors struct {
	mu   sync.RWMutex
	list []Interceptor
}

// DefaultInterceptors is the registry used by stores created without
// WithInterceptors.
var DefaultInterceptors = NewInterceptors()

// NewInterceptors creates a registry holding fns in order.
func NewInterceptors(fns ...Interceptor) *Interceptors {
	i := &Interceptors{}
	i.Add(fns...)
	return i
}

// Add appends interceptors. The first one added runs outermost.
func (i *Interceptors) Add(fns ...Interceptor) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			i.list = append(i.list, fn)
		}
	}
}

// Clear removes every interceptor.
func (i *Interceptors) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.list = nil
}

// Len returns the number of registered interceptors.
func (i *Interceptors) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.list)
}

// Run executes the registered interceptors around terminal.
// The list is captured when Run starts; changes made while it runs apply to
// the next invocation.
func (i *Interceptors) Run(ac *ActionContext, terminal func() (any, error)) (any, error) {
	i.mu.RLock()
	snapshot := make([]Interceptor, len(i.list))
	copy(snapshot, i.list)
	i.mu.RUnlock()

	return Compose(ac, snapshot, terminal)
}

// AddInterceptor registers fn on DefaultInterceptors.
func AddInterceptor(fn Interceptor) {
	DefaultInterceptors.Add(fn)
}

// ClearInterceptors empties DefaultInterceptors.
func ClearInterceptors() {
	DefaultInterceptors.Clear()
}

// Compose runs chain around terminal for one invocation.
// Interceptors execute in order (first to last), with terminal at the end.
func Compose(ac *ActionContext, chain []Interceptor, terminal func() (any, error)) (any, error) {
	var dispatch func(idx int) (any, error)
	dispatch = func(idx int) (any, error) {
		if idx >= len(chain) {
			return terminal()
		}
		return chain[idx](ac, func() (any, error) {
			return dispatch(idx + 1)
		})
	}
	return dispatch(0)
}

// Chain combines several interceptors into one, in order.
func Chain(fns ...Interceptor) Interceptor {
	return func(ac *ActionContext, next func() (any, error)) (any, error) {
		return Compose(ac, fns, next)
	}
}

// Skip bypasses fn when condition holds.
func Skip(condition func(ac *ActionContext) bool, fn Interceptor) Interceptor {
	return func(ac *ActionContext, next func() (any, error)) (any, error) {
		if condition(ac) {
			return next()
		}
		return fn(ac, next)
	}
}

// Only runs fn only when condition holds.
func Only(condition func(ac *ActionContext) bool, fn Interceptor) Interceptor {
	return func(ac *ActionContext, next func() (any, error)) (any, error) {
		if !condition(ac) {
			return next()
		}
		return fn(ac, next)
	}
}

// ForChunk matches invocations on the named store.
func ForChunk(name string) func(ac *ActionContext) bool {
	return func(ac *ActionContext) bool {
		return ac.Chunk == name
	}
}
