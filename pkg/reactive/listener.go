package reactive

// Listener is anything that can be notified when a dependency changes.
// Memos and reactions implement it.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies has changed.
	// For memos, this invalidates the cached value.
	// For reactions, this schedules the expression to be re-evaluated.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing.
	ID() uint64
}

// runner is a listener that does work after invalidation settles.
type runner interface {
	Listener
	run()
}

// sourceTracker is implemented by listeners that remember what they read,
// so they can drop subscriptions a re-evaluation no longer reads.
type sourceTracker interface {
	addSource(source *signalBase)
}
