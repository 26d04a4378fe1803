package reactive

import (
	"sync"
	"sync/atomic"
)

// Owner is a disposal scope for reactions and cleanup functions.
// When an Owner is disposed, its children are disposed first (last created
// first), then its cleanups run in reverse registration order.
//
// Owners form a hierarchy: a child registered with NewOwner(parent) is
// disposed together with its parent.
type Owner struct {
	id uint64

	// parent is the parent Owner in the hierarchy, nil for a root.
	parent *Owner

	children   []*Owner
	childrenMu sync.Mutex

	// cleanups are functions registered via OnCleanup.
	cleanups   []func()
	cleanupsMu sync.Mutex

	disposed atomic.Bool
}

// NewOwner creates a new Owner with the given parent.
// If parent is nil, creates a root Owner.
func NewOwner(parent *Owner) *Owner {
	o := &Owner{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(o)
	}

	return o
}

// ID returns the unique identifier for this Owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent Owner, or nil if this is a root Owner.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// IsDisposed returns true if this Owner has been disposed.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

func (o *Owner) addChild(child *Owner) {
	if o.disposed.Load() {
		child.Dispose()
		return
	}
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()

	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// OnCleanup registers a cleanup function to run when this Owner is disposed.
// If the Owner is already disposed, fn runs immediately.
func (o *Owner) OnCleanup(fn func()) {
	o.cleanupsMu.Lock()
	if !o.disposed.Load() {
		o.cleanups = append(o.cleanups, fn)
		o.cleanupsMu.Unlock()
		return
	}
	o.cleanupsMu.Unlock()
	safeCall(fn)
}

// Dispose disposes this Owner and everything it owns.
// Panics raised by cleanups are swallowed: teardown must not fail.
// Dispose is idempotent.
func (o *Owner) Dispose() {
	o.cleanupsMu.Lock()
	if o.disposed.Swap(true) {
		o.cleanupsMu.Unlock()
		return
	}
	cleanups := o.cleanups
	o.cleanups = nil
	o.cleanupsMu.Unlock()

	if o.parent != nil {
		o.parent.removeChild(o)
	}

	o.childrenMu.Lock()
	children := o.children
	o.children = nil
	o.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	for i := len(cleanups) - 1; i >= 0; i-- {
		safeCall(cleanups[i])
	}
}

func safeCall(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}
