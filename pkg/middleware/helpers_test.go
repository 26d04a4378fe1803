package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/vango-dev/chunk/pkg/chunk"
	"github.com/vango-dev/chunk/pkg/storage"
)

var errOutOfStock = errors.New("item not found")

// newCartStore builds a store whose actions run through interceptors.
func newCartStore(t *testing.T, interceptors ...chunk.Interceptor) *chunk.Store {
	t.Helper()
	s := chunk.New(chunk.Config{
		Name:         "cart",
		InitialState: map[string]any{"items": []string{}, "total": 0},
		Actions: func(s *chunk.Store) map[string]chunk.Action {
			return map[string]chunk.Action{
				"add": chunk.Sync(func(args ...any) (any, error) {
					items, _ := chunk.Value[[]string](s, "items")
					items = append(append([]string(nil), items...), args[0].(string))
					return len(items), s.Set("items", items)
				}),
				"remove": chunk.Sync(func(args ...any) (any, error) {
					return nil, errOutOfStock
				}),
				"checkout": chunk.Async(func(ctx context.Context, args ...any) (any, error) {
					return "ok", nil
				}),
			}
		},
	},
		chunk.WithInterceptors(chunk.NewInterceptors(interceptors...)),
		chunk.WithEngine(storage.NopEngine{}),
	)
	t.Cleanup(s.Dispose)
	return s
}
