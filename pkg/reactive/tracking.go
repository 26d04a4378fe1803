package reactive

import (
	"runtime"
	"sync"
)

// TrackingContext holds the reactive state for a goroutine.
// Each goroutine has its own tracking context so that concurrent action
// bodies and reactions keep independent transactions and listeners.
type TrackingContext struct {
	// currentOwner is the Owner that will own newly created reactions.
	currentOwner *Owner

	// currentListener is what's currently tracking dependencies.
	// When a signal is read, it subscribes this listener.
	// nil means no tracking (reads don't create subscriptions).
	currentListener Listener

	// batchDepth tracks nested Batch() calls.
	// When > 0, signal updates queue notifications instead of firing immediately.
	batchDepth int

	// pendingUpdates accumulates listeners to notify when the batch completes.
	pendingUpdates []Listener

	// pendingRuns accumulates reactions whose dependencies changed.
	// They run after invalidation has fully propagated.
	pendingRuns []runner
}

// idle reports whether the context carries no state worth keeping.
func (c *TrackingContext) idle() bool {
	return c.currentOwner == nil &&
		c.currentListener == nil &&
		c.batchDepth == 0 &&
		len(c.pendingUpdates) == 0 &&
		len(c.pendingRuns) == 0
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// The runtime stack starts with "goroutine <id> ".
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// lookupTrackingContext returns the context for the current goroutine,
// or nil if the goroutine never touched reactive state.
func lookupTrackingContext() *TrackingContext {
	if ctx, ok := trackingContexts.Load(getGoroutineID()); ok {
		return ctx.(*TrackingContext)
	}
	return nil
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating one if needed.
func getTrackingContext() *TrackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*TrackingContext)
	}

	ctx := &TrackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// releaseIfIdle drops the current goroutine's context once it holds nothing.
// Goroutines that run async action bodies come and go; without this the
// context map would grow with every one of them.
func releaseIfIdle() {
	gid := getGoroutineID()
	if ctx, ok := trackingContexts.Load(gid); ok && ctx.(*TrackingContext).idle() {
		trackingContexts.Delete(gid)
	}
}

// getCurrentListener returns the current listener being tracked.
// Returns nil if no tracking is active.
func getCurrentListener() Listener {
	if ctx := lookupTrackingContext(); ctx != nil {
		return ctx.currentListener
	}
	return nil
}

// setCurrentListener sets the current listener for dependency tracking.
// Returns the previous listener so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	return old
}

// restoreListener puts back a listener saved by setCurrentListener.
func restoreListener(l Listener) {
	getTrackingContext().currentListener = l
	if l == nil {
		releaseIfIdle()
	}
}

// getCurrentOwner returns the current owner for the goroutine.
func getCurrentOwner() *Owner {
	if ctx := lookupTrackingContext(); ctx != nil {
		return ctx.currentOwner
	}
	return nil
}

// setCurrentOwner sets the current owner and returns the previous one.
func setCurrentOwner(o *Owner) *Owner {
	ctx := getTrackingContext()
	old := ctx.currentOwner
	ctx.currentOwner = o
	return old
}

// getBatchDepth returns the current batch nesting depth.
func getBatchDepth() int {
	if ctx := lookupTrackingContext(); ctx != nil {
		return ctx.batchDepth
	}
	return 0
}

// incrementBatchDepth increases the batch depth by 1.
func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth decreases the batch depth by 1.
// Returns true if batch depth reached 0 (batch complete).
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

// queuePendingUpdate adds a listener to the pending updates queue.
func queuePendingUpdate(l Listener) {
	ctx := getTrackingContext()
	ctx.pendingUpdates = append(ctx.pendingUpdates, l)
}

// drainPendingUpdates returns and clears the pending updates queue.
func drainPendingUpdates() []Listener {
	ctx := getTrackingContext()
	updates := ctx.pendingUpdates
	ctx.pendingUpdates = nil
	return updates
}

// queuePendingRun schedules a reaction to run once propagation finishes.
func queuePendingRun(r runner) {
	ctx := getTrackingContext()
	ctx.pendingRuns = append(ctx.pendingRuns, r)
}

// drainPendingRuns returns and clears the pending reaction queue.
func drainPendingRuns() []runner {
	ctx := getTrackingContext()
	runs := ctx.pendingRuns
	ctx.pendingRuns = nil
	return runs
}

// WithOwner runs fn with owner as the current owner.
// Reactions created inside fn are disposed together with owner.
//
// Example:
//
//	go func() {
//	    WithOwner(storeOwner, func() {
//	        NewReaction(expr, onChange) // disposed with storeOwner
//	    })
//	}()
func WithOwner(owner *Owner, fn func()) {
	old := setCurrentOwner(owner)
	defer func() {
		setCurrentOwner(old)
		releaseIfIdle()
	}()
	fn()
}

// WithListener runs fn with l as the tracking listener.
// Every signal or memo read inside fn subscribes l.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer restoreListener(old)
	fn()
}
