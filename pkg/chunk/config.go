package chunk

import "context"

// Config declares a store.
type Config struct {
	// Name identifies the store in logs and interceptors. The persisted
	// snapshot is stored under Name + "Store".
	Name string

	// InitialState holds one entry per field. Each field becomes an
	// observable cell with an auto setter and an auto getter.
	InitialState map[string]any

	// Actions builds the store's actions. Entries made with Async are
	// exposed through AsyncActions.
	Actions ActionBuilder

	// AsyncActions is an alternative place for Async entries.
	AsyncActions ActionBuilder

	// Views builds derived values.
	Views ViewBuilder

	// Persist lists the fields written to the storage engine.
	// Names missing from InitialState are ignored.
	Persist []string
}

// ActionBuilder receives the store under construction and returns actions
// keyed by name.
type ActionBuilder func(s *Store) map[string]Action

// ViewBuilder receives the store under construction and returns views
// keyed by name.
type ViewBuilder func(s *Store) map[string]View

// SyncFunc is the body of a synchronous action.
type SyncFunc func(args ...any) (any, error)

// AsyncFunc is the body of an asynchronous action. ctx is the context the
// action was invoked with, possibly replaced by interceptors.
type AsyncFunc func(ctx context.Context, args ...any) (any, error)

// Action is either a synchronous or an asynchronous action body.
// Build one with Sync or Async.
type Action struct {
	sync  SyncFunc
	async AsyncFunc
}

// Sync declares a synchronous action. Its body runs inside one transaction.
func Sync(fn SyncFunc) Action {
	return Action{sync: fn}
}

// Async declares an asynchronous action. Each invocation runs on its own
// goroutine and is tracked by the store's loading flags.
func Async(fn AsyncFunc) Action {
	return Action{async: fn}
}

// IsAsync reports whether the action was built with Async.
func (a Action) IsAsync() bool {
	return a.async != nil
}

// View is either a cached computed value or a parameterized selector.
// Build one with Computed or Param.
type View struct {
	computed func() any
	param    func(args ...any) any
}

// Computed declares a cached view. It recomputes only after a field or view
// it read has changed.
func Computed(fn func() any) View {
	return View{computed: fn}
}

// Param declares a view that takes arguments. It is not cached.
func Param(fn func(args ...any) any) View {
	return View{param: fn}
}

// CombineActions merges several builders into one. Later builders override
// earlier ones on name clashes.
func CombineActions(builders ...ActionBuilder) ActionBuilder {
	return func(s *Store) map[string]Action {
		merged := make(map[string]Action)
		for _, b := range builders {
			if b == nil {
				continue
			}
			for name, a := range b(s) {
				merged[name] = a
			}
		}
		return merged
	}
}
