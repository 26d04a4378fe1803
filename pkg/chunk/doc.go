// Package chunk builds observable stores from a declarative Config.
//
// A store has one observable field per InitialState entry, actions that
// mutate fields in transactions, views derived from fields, loading flags
// for asynchronous actions, and optional persistence of selected fields to
// a storage engine.
//
// # Actions
//
// Every field gets a setter named "set" + Field. Configured actions are
// built with Sync or Async:
//
//	Actions: func(s *chunk.Store) map[string]chunk.Action {
//	    return map[string]chunk.Action{
//	        "add": chunk.Sync(func(args ...any) (any, error) {
//	            todos, _ := chunk.Value[[]string](s, "todos")
//	            return nil, s.Set("todos", append(todos, args[0].(string)))
//	        }),
//	        "load": chunk.Async(func(ctx context.Context, args ...any) (any, error) {
//	            items, err := fetch(ctx)
//	            if err != nil {
//	                return nil, err
//	            }
//	            return nil, s.Set("todos", items)
//	        }),
//	    }
//	},
//
// Sync bodies run inside one transaction, so observers see their writes as
// a single change. Async actions return an *Operation immediately and flip
// IsLoading(name) while any invocation is in flight.
//
// # Interceptors
//
// Every action call, including setters, passes through an ordered chain of
// interceptors:
//
//	chunk.AddInterceptor(func(ac *chunk.ActionContext, next func() (any, error)) (any, error) {
//	    start := time.Now()
//	    result, err := next()
//	    log.Printf("%s.%s took %s", ac.Chunk, ac.Action, time.Since(start))
//	    return result, err
//	})
//
// # Views
//
// Every field gets a getter named "get" + Field. Computed views are cached
// and recompute only after something they read changed; Param views take
// arguments and are evaluated on each call.
//
// # Persistence
//
// Fields listed in Persist are written to the storage engine under
// Name + "Store" as one JSON object whose values are the fields' own JSON
// encodings. A new store first reads that object back (PhaseHydrating) and
// only then starts writing (PhaseSteady). Engines come from WithEngine or
// ConfigureEngine; see package storage.
package chunk
