package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/vango-dev/chunk/pkg/reactive"
	"github.com/vango-dev/chunk/pkg/storage"
)

// Store is a live store built from a Config.
// All methods are safe for concurrent use.
type Store struct {
	name   string
	logger *slog.Logger

	interceptors  *Interceptors
	engine        storage.Engine
	engineTimeout time.Duration

	keys  []string
	cells map[string]*reactive.Signal[any]

	actions      map[string]ActionFunc
	asyncActions map[string]AsyncActionFunc
	selectors    map[string]Selector
	loading      *loadingTracker

	// owner disposes every reaction the store created.
	owner   *reactive.Owner
	persist *persister

	mu           sync.Mutex
	phase        atomic.Int32
	steady       bool
	hydrated     chan struct{}
	hydratedOnce sync.Once
	disposeOnce  sync.Once
}

// New builds a store from cfg.
//
// Example:
//
//	counter := chunk.New(chunk.Config{
//	    Name:         "counter",
//	    InitialState: map[string]any{"count": 0},
//	    Actions: func(s *chunk.Store) map[string]chunk.Action {
//	        return map[string]chunk.Action{
//	            "increment": chunk.Sync(func(args ...any) (any, error) {
//	                n, _ := chunk.Value[int](s, "count")
//	                return nil, s.Set("count", n+1)
//	            }),
//	        }
//	    },
//	    Persist: []string{"count"},
//	})
//	defer counter.Dispose()
func New(cfg Config, opts ...Option) *Store {
	o := buildOptions(opts)

	s := &Store{
		name:          cfg.Name,
		logger:        o.logger,
		interceptors:  o.interceptors,
		engine:        o.engine,
		engineTimeout: o.engineTimeout,
		cells:         make(map[string]*reactive.Signal[any], len(cfg.InitialState)),
		owner:         reactive.NewOwner(nil),
		hydrated:      make(chan struct{}),
	}
	s.phase.Store(int32(PhaseConstructing))

	for key := range cfg.InitialState {
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)
	for _, key := range s.keys {
		s.cells[key] = reactive.NewSignal(cfg.InitialState[key])
	}

	s.buildActions(cfg)
	s.buildSelectors(cfg)
	s.startPersistence(cfg.Persist)

	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Fields returns the field names in sorted order.
func (s *Store) Fields() []string {
	return append([]string(nil), s.keys...)
}

// Phase returns the store's lifecycle phase.
func (s *Store) Phase() Phase {
	return Phase(s.phase.Load())
}

// Get returns a field's value and records it as a dependency of the
// running view or reaction. It returns nil for unknown fields.
func (s *Store) Get(key string) any {
	cell, ok := s.cells[key]
	if !ok {
		return nil
	}
	return cell.Get()
}

// Lookup is like Get but reports whether the field exists.
func (s *Store) Lookup(key string) (any, bool) {
	cell, ok := s.cells[key]
	if !ok {
		return nil, false
	}
	return cell.Get(), true
}

// Set writes a field directly, without going through an action.
// Inside an action the write joins the action's transaction.
func (s *Store) Set(key string, value any) error {
	cell, ok := s.cells[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	cell.Set(value)
	return nil
}

// Update replaces a field with fn applied to its current value.
func (s *Store) Update(key string, fn func(any) any) error {
	cell, ok := s.cells[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	cell.Update(fn)
	return nil
}

// Snapshot returns the current field values without tracking them.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.cells))
	for key, cell := range s.cells {
		out[key] = cell.Peek()
	}
	return out
}

// Actions returns the synchronous actions: one setter per field plus the
// configured ones.
func (s *Store) Actions() map[string]ActionFunc {
	return maps.Clone(s.actions)
}

// AsyncActions returns the asynchronous actions.
func (s *Store) AsyncActions() map[string]AsyncActionFunc {
	return maps.Clone(s.asyncActions)
}

// Selectors returns one getter per field plus the configured views.
func (s *Store) Selectors() map[string]Selector {
	return maps.Clone(s.selectors)
}

// Observe runs onChange whenever expr's result changes. The reaction is
// disposed together with the store.
func (s *Store) Observe(expr func() any, onChange func(next, prev any), opts ...reactive.ReactionOption) *reactive.Reaction[any] {
	var r *reactive.Reaction[any]
	reactive.WithOwner(s.owner, func() {
		r = reactive.NewReaction(expr, onChange, opts...)
	})
	return r
}

// Hydrated returns a channel closed once the store leaves hydration,
// either by reaching PhaseSteady or by being disposed.
func (s *Store) Hydrated() <-chan struct{} {
	return s.hydrated
}

// WaitHydrated blocks until the store reaches PhaseSteady.
// It returns ErrDisposed if the store was disposed first.
func (s *Store) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.hydrated:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.Phase() == PhaseDisposed && !s.reachedSteady() {
		return ErrDisposed
	}
	return nil
}

// Flush waits for hydration to end and then until every snapshot queued for
// the engine so far has been written or has failed.
func (s *Store) Flush(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	select {
	case <-s.hydrated:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.persist.flush(ctx)
}

// Dispose detaches persistence and disposes every reaction the store owns.
// It is safe to call more than once and from several goroutines.
func (s *Store) Dispose() {
	s.disposeOnce.Do(func() {
		s.mu.Lock()
		s.phase.Store(int32(PhaseDisposed))
		s.mu.Unlock()

		s.owner.Dispose()
		if s.persist != nil {
			s.persist.stop()
		}
		s.markHydrated()

		s.logger.Debug("chunk disposed", "chunk", s.name)
	})
}

// enterSteady moves the store to PhaseSteady unless it was disposed.
func (s *Store) enterSteady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Phase() == PhaseDisposed {
		return false
	}
	s.phase.Store(int32(PhaseSteady))
	s.steady = true
	return true
}

func (s *Store) reachedSteady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steady
}

func (s *Store) markHydrated() {
	s.hydratedOnce.Do(func() {
		close(s.hydrated)
	})
}

// Value reads field key of s as a T. The read is tracked like Store.Get.
func Value[T any](s *Store, key string) (T, error) {
	var zero T
	v, ok := s.Lookup(key)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: field %q holds %T", ErrTypeMismatch, key, v)
	}
	return t, nil
}

// capitalize upper-cases the first rune of name.
func capitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
