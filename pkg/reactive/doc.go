// Package reactive provides the reactive substrate that chunk stores are
// built on: observable cells, lazily cached computed values and reactions.
//
// Dependencies are tracked automatically at runtime. Reading a signal while
// a memo or reaction is evaluating subscribes it to that signal's changes.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := NewSignal(0)
//	value := count.Get()  // Read (subscribes current listener)
//	count.Set(5)          // Write (notifies subscribers)
//	count.Update(func(n int) int { return n + 1 })
//
// Memo[T] is a cached derived computation:
//
//	doubled := NewMemo(func() int { return count.Get() * 2 })
//	value := doubled.Get()  // Recomputes only if dependencies changed
//
// Reaction[T] runs a side effect when a derived expression changes:
//
//	r := NewReaction(
//	    func() int { return doubled.Get() },
//	    func(next, prev int) { fmt.Println(prev, "->", next) },
//	)
//	defer r.Dispose()
//
// # Transactions
//
// Multiple signal updates can be batched so reactions observe only the
// state before and after:
//
//	Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})  // Each affected reaction runs at most once
//
// A single Set outside Batch behaves like a one-write transaction.
//
// # Thread Safety
//
// All reactive primitives can be accessed from multiple goroutines.
// Tracking and batching state is per goroutine, so a transaction opened on
// one goroutine does not hold back writes made on another.
package reactive
