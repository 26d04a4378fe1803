package reactive

import "log/slog"

// DebugMode enables debug logging of named transactions.
// This should be set at startup and not changed during runtime.
var DebugMode bool

// Batch groups multiple signal updates into a single notification phase.
// All signal updates within fn are collected, deduplicated, and affected
// listeners are notified once when the batch completes. Reactions therefore
// only ever observe the state before and after the batch.
//
// Batches can be nested. Notifications only fire when the outermost batch completes.
//
// Example:
//
//	Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	})
//	// fullName reactions run once
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			flush()
		}
	}()

	fn()
}

// flush propagates queued invalidations and then runs affected reactions.
//
// Invalidation runs at batch depth 1 so that memos marking their own
// subscribers queue them here instead of starting a nested flush. Reactions
// run afterward, when every memo they might read has been invalidated.
func flush() {
	incrementBatchDepth()
	for {
		updates := drainPendingUpdates()
		if len(updates) == 0 {
			break
		}
		for _, listener := range dedupe(updates) {
			listener.MarkDirty()
		}
	}
	decrementBatchDepth()

	runs := drainPendingRuns()
	releaseIfIdle()
	if len(runs) == 0 {
		return
	}

	var first any
	for _, r := range runs {
		if p := runRecovered(r); p != nil && first == nil {
			first = p
		}
	}
	if first != nil {
		panic(first)
	}
}

// runRecovered runs r and returns whatever it panicked with.
func runRecovered(r runner) (p any) {
	defer func() {
		p = recover()
	}()
	r.run()
	return nil
}

// dedupe removes repeated listeners, keeping first occurrence order.
func dedupe[L Listener](updates []L) []L {
	seen := make(map[uint64]bool, len(updates))
	unique := make([]L, 0, len(updates))

	for _, listener := range updates {
		id := listener.ID()
		if !seen[id] {
			seen[id] = true
			unique = append(unique, listener)
		}
	}
	return unique
}

// Untracked runs a function without tracking signal reads as dependencies.
//
// Example:
//
//	Untracked(func() {
//	    // Reading count here won't subscribe the running reaction
//	    fmt.Println("Current value:", count.Get())
//	})
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer restoreListener(old)
	fn()
}

// UntrackedGet reads a signal's value without creating a dependency.
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}

// Tx runs fn as a transaction. It is an alias for Batch.
func Tx(fn func()) {
	Batch(fn)
}

// TxNamed runs fn as a named transaction.
// The name is logged at debug level when DebugMode is set.
func TxNamed(name string, fn func()) {
	if DebugMode {
		slog.Debug("tx start", "tx", name)
		defer slog.Debug("tx end", "tx", name)
	}
	Batch(fn)
}
