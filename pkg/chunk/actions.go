package chunk

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/vango-dev/chunk/pkg/reactive"
)

// ActionFunc invokes a synchronous action.
type ActionFunc func(args ...any) (any, error)

// AsyncActionFunc starts an asynchronous action and returns its handle
// without waiting for it.
type AsyncActionFunc func(ctx context.Context, args ...any) *Operation

func (s *Store) buildActions(cfg Config) {
	s.actions = make(map[string]ActionFunc, len(s.keys))
	s.asyncActions = make(map[string]AsyncActionFunc)

	for _, key := range s.keys {
		cell := s.cells[key]
		name := "set" + capitalize(key)
		s.actions[name] = s.wrapSync(name, func(args ...any) (any, error) {
			var v any
			if len(args) > 0 {
				v = args[0]
			}
			cell.Set(v)
			return nil, nil
		})
	}

	declared := CombineActions(cfg.Actions, cfg.AsyncActions)(s)

	asyncNames := make([]string, 0)
	for name, a := range declared {
		if a.IsAsync() {
			asyncNames = append(asyncNames, name)
			continue
		}
		if a.sync == nil {
			continue
		}
		s.actions[name] = s.wrapSync(name, a.sync)
	}

	s.loading = newLoadingTracker(asyncNames, s.logger)
	for _, name := range asyncNames {
		s.asyncActions[name] = s.wrapAsync(name, declared[name].async)
	}
}

func (s *Store) newActionContext(ctx context.Context, name string, args []any, async bool) *ActionContext {
	return &ActionContext{
		Chunk:   s.name,
		Action:  name,
		Args:    args,
		Store:   s,
		CallID:  uuid.NewString(),
		Async:   async,
		Context: ctx,
	}
}

// wrapSync runs fn inside one transaction behind the interceptor chain.
func (s *Store) wrapSync(name string, fn SyncFunc) ActionFunc {
	txName := s.name + "." + name
	return func(args ...any) (any, error) {
		ac := s.newActionContext(context.Background(), name, args, false)
		return s.interceptors.Run(ac, func() (result any, err error) {
			reactive.TxNamed(txName, func() {
				result, err = fn(ac.Args...)
			})
			return result, err
		})
	}
}

// wrapAsync starts fn on its own goroutine. The whole interceptor chain
// runs on that goroutine, so interceptors observe the settled result.
func (s *Store) wrapAsync(name string, fn AsyncFunc) AsyncActionFunc {
	return func(ctx context.Context, args ...any) *Operation {
		if ctx == nil {
			ctx = context.Background()
		}
		op := newOperation(s.name, name)
		end := s.loading.begin(name)

		go func() {
			var (
				result any
				err    error
			)
			defer func() {
				if p := recover(); p != nil {
					result = nil
					err = &PanicError{Chunk: s.name, Action: name, Value: p, Stack: debug.Stack()}
					s.logger.Error("async action panicked",
						"chunk", s.name,
						"action", name,
						"panic", p,
					)
				}
				end()
				op.settle(result, err)
			}()

			ac := s.newActionContext(ctx, name, args, true)
			result, err = s.interceptors.Run(ac, func() (any, error) {
				return fn(ac.Context, ac.Args...)
			})
		}()

		return op
	}
}

// Call invokes the named action and waits for its result.
// Async actions are run with context.Background().
func (s *Store) Call(name string, args ...any) (any, error) {
	if fn, ok := s.actions[name]; ok {
		return fn(args...)
	}
	if fn, ok := s.asyncActions[name]; ok {
		return fn(context.Background(), args...).Wait(context.Background())
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAction, s.name, name)
}

// Dispatch invokes the named action without waiting for async ones.
// Sync actions run before Dispatch returns and yield a settled Operation.
func (s *Store) Dispatch(ctx context.Context, name string, args ...any) (*Operation, error) {
	if fn, ok := s.asyncActions[name]; ok {
		return fn(ctx, args...), nil
	}
	if fn, ok := s.actions[name]; ok {
		op := newOperation(s.name, name)
		result, err := fn(args...)
		op.settle(result, err)
		return op, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAction, s.name, name)
}
