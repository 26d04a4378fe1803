package chunk

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/chunk/pkg/reactive"
)

// loadingTracker keeps one in-flight counter per async action.
// Counters are private; only counter > 0 is exposed.
type loadingTracker struct {
	logger   *slog.Logger
	counters map[string]*reactive.Signal[int]
	flags    map[string]*reactive.Memo[bool]
}

func newLoadingTracker(names []string, logger *slog.Logger) *loadingTracker {
	t := &loadingTracker{
		logger:   logger,
		counters: make(map[string]*reactive.Signal[int], len(names)),
		flags:    make(map[string]*reactive.Memo[bool], len(names)),
	}
	for _, name := range names {
		counter := reactive.NewSignal(0)
		t.counters[name] = counter
		t.flags[name] = reactive.NewMemo(func() bool {
			return counter.Get() > 0
		})
	}
	return t
}

// begin increments the counter for name and returns the matching
// decrement, which takes effect once no matter how often it is called.
func (t *loadingTracker) begin(name string) func() {
	counter, ok := t.counters[name]
	if !ok {
		return func() {}
	}

	reactive.Tx(func() {
		counter.Update(func(n int) int { return n + 1 })
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			t.release(name, counter)
		})
	}
}

// release decrements counter. It runs on the action's goroutine after the
// body settled, so a panicking observer is logged instead of crashing it.
func (t *loadingTracker) release(name string, counter *reactive.Signal[int]) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("loading observer panicked", "action", name, "panic", p)
		}
	}()
	reactive.Tx(func() {
		counter.Update(func(n int) int {
			if n <= 0 {
				return 0
			}
			return n - 1
		})
	})
}

func (t *loadingTracker) isLoading(name string) bool {
	flag, ok := t.flags[name]
	if !ok {
		return false
	}
	return flag.Get()
}

// IsLoading reports whether any invocation of the async action name is in
// flight. The read is tracked, so views and reactions re-run when it flips.
func (s *Store) IsLoading(name string) bool {
	return s.loading.isLoading(name)
}

// Loading returns the loading flag of every async action.
func (s *Store) Loading() map[string]bool {
	out := make(map[string]bool, len(s.loading.flags))
	for name := range s.loading.flags {
		out[name] = s.loading.isLoading(name)
	}
	return out
}

// LoadingFlag returns the computed flag behind IsLoading(name), or nil if
// name is not an async action.
func (s *Store) LoadingFlag(name string) *reactive.Memo[bool] {
	return s.loading.flags[name]
}
