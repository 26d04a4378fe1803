package reactive

import (
	"sync"
	"sync/atomic"
)

// Reaction re-evaluates an expression whenever something it read changes,
// and calls onChange when the expression's result differs from the last one.
//
// The expression is tracked: every signal or memo it reads becomes a
// dependency, and the dependency set is rebuilt on each evaluation.
// onChange itself is not tracked.
type Reaction[T any] struct {
	id uint64

	expr     func() T
	onChange func(next, prev T)

	// prev is the result of the last evaluation.
	prev T

	// equal decides whether a new result counts as a change.
	equal func(T, T) bool

	sources   []*signalBase
	sourcesMu sync.Mutex

	// pending indicates the reaction is queued to run.
	pending atomic.Bool

	// running serializes evaluation; rerun asks the active run to go again.
	running atomic.Bool
	rerun   atomic.Bool

	disposed atomic.Bool
}

// ReactionOption configures a Reaction.
type ReactionOption func(*reactionOptions)

type reactionOptions struct {
	fireImmediately bool
	equal           any
}

// FireImmediately calls onChange with the baseline result when the
// reaction is created. The previous value passed is the zero value.
func FireImmediately() ReactionOption {
	return func(o *reactionOptions) {
		o.fireImmediately = true
	}
}

// ReactionEquals sets the comparison used to decide whether the
// expression's result changed. The function must match the reaction's T.
func ReactionEquals[T any](fn func(a, b T) bool) ReactionOption {
	return func(o *reactionOptions) {
		o.equal = fn
	}
}

// NewReaction creates a reaction and evaluates expr once to establish its
// baseline. If an owner is active (see WithOwner) the reaction is disposed
// together with it.
//
// Example:
//
//	r := NewReaction(
//	    func() int { return count.Get() },
//	    func(next, prev int) { fmt.Println(prev, "->", next) },
//	)
//	defer r.Dispose()
func NewReaction[T any](expr func() T, onChange func(next, prev T), opts ...ReactionOption) *Reaction[T] {
	var o reactionOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reaction[T]{
		id:       nextID(),
		expr:     expr,
		onChange: onChange,
	}
	if fn, ok := o.equal.(func(a, b T) bool); ok {
		r.equal = fn
	}

	if owner := getCurrentOwner(); owner != nil {
		owner.OnCleanup(r.Dispose)
	}

	func() {
		r.running.Store(true)
		defer r.running.Store(false)
		r.prev = r.evaluate()
	}()

	if o.fireImmediately && !r.disposed.Load() {
		var zero T
		r.onChange(r.prev, zero)
	}

	return r
}

// MarkDirty schedules the reaction to run after the current propagation.
// Implements the Listener interface.
func (r *Reaction[T]) MarkDirty() {
	if r.disposed.Load() {
		return
	}
	if r.pending.CompareAndSwap(false, true) {
		queuePendingRun(r)
	}
}

// ID returns the unique identifier for this reaction.
func (r *Reaction[T]) ID() uint64 {
	return r.id
}

// Disposed reports whether Dispose has been called.
func (r *Reaction[T]) Disposed() bool {
	return r.disposed.Load()
}

// Dispose unsubscribes the reaction from all of its dependencies.
// It is safe to call more than once.
func (r *Reaction[T]) Dispose() {
	if r.disposed.Swap(true) {
		return
	}
	r.clearSources()
}

// run re-evaluates the expression and fires onChange on a change.
// A run requested while another is in progress is folded into it.
func (r *Reaction[T]) run() {
	r.pending.Store(false)

	for {
		if r.disposed.Load() {
			return
		}
		if !r.running.CompareAndSwap(false, true) {
			r.rerun.Store(true)
			return
		}
		r.drain()
		// A request may have landed between the last check and the release.
		if !r.rerun.Load() {
			return
		}
	}
}

// drain evaluates until no further run was requested. Callers hold running.
func (r *Reaction[T]) drain() {
	defer r.running.Store(false)

	for {
		r.rerun.Store(false)
		if r.disposed.Load() {
			return
		}

		next := r.evaluate()
		if !r.equals(next, r.prev) {
			prev := r.prev
			r.prev = next
			r.onChange(next, prev)
		}

		if !r.rerun.Load() {
			return
		}
	}
}

// evaluate runs expr with this reaction as the tracking listener.
// Subscriptions from the previous run are dropped only after expr returns,
// and only for sources it no longer read.
func (r *Reaction[T]) evaluate() T {
	r.sourcesMu.Lock()
	prev := r.sources
	r.sources = nil
	r.sourcesMu.Unlock()

	defer func() {
		r.sourcesMu.Lock()
		stale := staleSources(prev, r.sources)
		r.sourcesMu.Unlock()
		for _, source := range stale {
			source.unsubscribe(r)
		}
	}()

	var value T
	func() {
		old := setCurrentListener(r)
		defer restoreListener(old)
		value = r.expr()
	}()

	if r.disposed.Load() {
		r.clearSources()
	}
	return value
}

func (r *Reaction[T]) clearSources() {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()
	for _, source := range r.sources {
		source.unsubscribe(r)
	}
	r.sources = nil
}

func (r *Reaction[T]) addSource(source *signalBase) {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()

	for _, s := range r.sources {
		if s == source {
			return
		}
	}
	r.sources = append(r.sources, source)
}

func (r *Reaction[T]) equals(a, b T) bool {
	if r.equal != nil {
		return r.equal(a, b)
	}
	return Equal(a, b)
}

var _ runner = (*Reaction[int])(nil)
