package chunk

import (
	"fmt"

	"github.com/vango-dev/chunk/pkg/reactive"
)

// Selector reads a field or a view.
type Selector struct {
	get  func() any
	call func(args ...any) any
}

// Get returns the selector's value. Parameterized views are called with no
// arguments.
func (sel Selector) Get() any {
	if sel.call != nil {
		return sel.call()
	}
	return sel.get()
}

// Call returns the selector's value for args. Arguments are ignored by
// getters and computed views.
func (sel Selector) Call(args ...any) any {
	if sel.call != nil {
		return sel.call(args...)
	}
	return sel.get()
}

// IsParam reports whether the selector takes arguments.
func (sel Selector) IsParam() bool {
	return sel.call != nil
}

func (s *Store) buildSelectors(cfg Config) {
	s.selectors = make(map[string]Selector, len(s.keys))

	for _, key := range s.keys {
		cell := s.cells[key]
		s.selectors["get"+capitalize(key)] = Selector{get: cell.Get}
	}

	if cfg.Views == nil {
		return
	}
	for name, v := range cfg.Views(s) {
		switch {
		case v.param != nil:
			s.selectors[name] = Selector{call: v.param}
		case v.computed != nil:
			memo := reactive.NewMemo(v.computed)
			s.selectors[name] = Selector{get: memo.Get}
		}
	}
}

// Select evaluates the named selector.
func (s *Store) Select(name string, args ...any) (any, error) {
	sel, ok := s.selectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownView, s.name, name)
	}
	if len(args) > 0 && !sel.IsParam() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotParam, s.name, name)
	}
	return sel.Call(args...), nil
}

// Select evaluates the named selector of s as a T.
func Select[T any](s *Store, name string, args ...any) (T, error) {
	var zero T
	v, err := s.Select(name, args...)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: view %q returned %T", ErrTypeMismatch, name, v)
	}
	return t, nil
}
