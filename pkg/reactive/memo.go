package reactive

import (
	"sync"
	"sync/atomic"
)

// Memo is a cached computation that automatically tracks its dependencies.
// When any dependency changes, the memo is invalidated and will recompute
// on the next read.
//
// Memos are lazy: they only compute their value when Get() or Peek() is
// called. If multiple signals change before a read, the memo only
// recomputes once.
//
// Memos can also be subscribed to, behaving like signals themselves.
// This allows building chains of derived values.
type Memo[T any] struct {
	base signalBase

	// compute is the function that computes the memo's value.
	compute func() T

	// value is the cached computed value.
	value   T
	valueMu sync.RWMutex

	// valid indicates whether the cached value is current.
	valid atomic.Bool

	// epoch counts invalidations, so a recompute can tell whether a source
	// changed while compute was running. stateMu guards epoch and every
	// change of valid.
	epoch   uint64
	stateMu sync.Mutex

	// sources are the signals/memos this memo read during its last run.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// computeMu serializes recomputation across goroutines.
	computeMu sync.Mutex

	// computingG is the goroutine holding computeMu, 0 when idle. A read
	// from that same goroutine is a circular dependency.
	computingG atomic.Uint64

	// runs counts evaluations of compute.
	runs atomic.Uint64
}

// NewMemo creates a new memo with the given computation function.
// The computation is not run immediately; it runs lazily on first read.
func NewMemo[T any](compute func() T) *Memo[T] {
	return &Memo[T]{
		base: signalBase{
			id: nextID(),
		},
		compute: compute,
	}
}

// Get returns the memo's value, recomputing if necessary.
// Creates a dependency on this memo for the current listener.
func (m *Memo[T]) Get() T {
	m.base.track()
	return m.Peek()
}

// Peek returns the memo's value without subscribing.
// Still triggers recomputation if the value is invalid.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the memo and propagates to subscribers.
// Implements the Listener interface.
func (m *Memo[T]) MarkDirty() {
	m.stateMu.Lock()
	m.epoch++
	wasValid := m.valid.Swap(false)
	m.stateMu.Unlock()

	if wasValid {
		m.base.notifySubscribers()
	}
}

// ID returns the unique identifier for this memo.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// Runs returns how many times the computation has been evaluated.
func (m *Memo[T]) Runs() uint64 {
	return m.runs.Load()
}

func (m *Memo[T]) addSource(source *signalBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// maxMemoPasses bounds how often one recompute retries while its sources
// keep changing underneath it.
const maxMemoPasses = 64

// recompute runs the computation and updates the cached value.
// Concurrent callers wait for the running computation instead of reading
// the old value. If a source changes while compute runs, it runs again.
func (m *Memo[T]) recompute() {
	gid := getGoroutineID()
	if m.computingG.Load() == gid {
		// Circular dependency.
		return
	}

	m.computeMu.Lock()
	m.computingG.Store(gid)
	defer func() {
		m.computingG.Store(0)
		m.computeMu.Unlock()
	}()

	for pass := 0; ; pass++ {
		m.stateMu.Lock()
		if m.valid.Load() {
			m.stateMu.Unlock()
			return
		}
		epoch := m.epoch
		m.stateMu.Unlock()

		value := m.evaluate()

		m.stateMu.Lock()
		if m.epoch == epoch || pass+1 >= maxMemoPasses {
			m.valueMu.Lock()
			m.value = value
			m.valueMu.Unlock()
			m.valid.Store(true)
			m.stateMu.Unlock()
			return
		}
		m.stateMu.Unlock()
	}
}

// evaluate runs compute with m as the tracking listener. Subscriptions from
// the previous run stay live until compute returns, so no write to a source
// can slip between dropping and re-adding it.
func (m *Memo[T]) evaluate() T {
	m.sourcesMu.Lock()
	prev := m.sources
	m.sources = nil
	m.sourcesMu.Unlock()

	defer func() {
		m.sourcesMu.Lock()
		stale := staleSources(prev, m.sources)
		m.sourcesMu.Unlock()
		for _, source := range stale {
			source.unsubscribe(m)
		}
	}()

	old := setCurrentListener(m)
	defer restoreListener(old)
	value := m.compute()
	m.runs.Add(1)
	return value
}

var _ sourceTracker = (*Memo[int])(nil)
