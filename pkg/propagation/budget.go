// Package propagation bounds the reactive chains of a knowledge base.
//
// One external attribute write can trigger watch callbacks and rule
// hooks that write further attributes, across neighbors, possibly in
// cycles. Budget is the single object that keeps such a chain finite:
// it counts every write in the chain against a global budget, counts
// writes per entity against a recursion limit, and owns the FIFO queue
// through which callback dispatches are drained iteratively, so a long
// chain costs queue space instead of call-stack depth.
//
// A Budget is confined to one goroutine, like the knowledge base that
// owns it. The reactive chain is synchronous and re-entrant; the
// guards here are what make the re-entrancy safe.
//
// Example:
//
//	b := propagation.New()
//	if b.Admit("node1") {
//		prev := commitWrite()
//		if !b.Suppressed() {
//			b.Enqueue(func() { notifyWatchers(prev) })
//		}
//		b.Drain()
//	}
package propagation

import "math"

// Unlimited disables the global propagation limit.
const Unlimited = math.MaxInt

const (
	// DefaultRecursionLimit is the per-entity write allowance within
	// one chain. Deliberately low; simulations raise it.
	DefaultRecursionLimit = 1

	// DefaultDispatchCeiling is the hard cap on callback dispatches
	// per chain. Configured limits are caller policy; this ceiling is
	// the engine's own defense against a chain that those limits fail
	// to stop.
	DefaultDispatchCeiling = 1 << 20
)

// Budget tracks one knowledge base's propagation state: the configured
// limits, the per-chain counters, the suppress flag, and the dispatch
// queue. Counters are zero between chains; that invariant holds even
// when a dispatched callback panics.
type Budget struct {
	recursionLimit  int
	globalLimit     int
	dispatchCeiling int

	suppressed bool
	draining   bool

	totalWrites int
	perEntity   map[string]int
	queue       []func()
}

// New returns a Budget with the default limits: per-entity recursion
// limit 1, unlimited global propagation.
func New() *Budget {
	return &Budget{
		recursionLimit:  DefaultRecursionLimit,
		globalLimit:     Unlimited,
		dispatchCeiling: DefaultDispatchCeiling,
		perEntity:       make(map[string]int),
	}
}

// SetRecursionLimit caps how many times the same entity or relation
// may be written within one chain.
func (b *Budget) SetRecursionLimit(n int) { b.recursionLimit = n }

// RecursionLimit returns the per-entity limit.
func (b *Budget) RecursionLimit() int { return b.recursionLimit }

// SetPropagationLimit caps the total number of writes one external
// mutation may trigger. Zero behaves like a permanent suppress scope;
// Unlimited restores full network effects.
func (b *Budget) SetPropagationLimit(n int) { b.globalLimit = n }

// PropagationLimit returns the global limit.
func (b *Budget) PropagationLimit() int { return b.globalLimit }

// SetDispatchCeiling overrides the hard per-chain dispatch cap.
func (b *Budget) SetDispatchCeiling(n int) {
	if n > 0 {
		b.dispatchCeiling = n
	}
}

// Admit asks whether a write to the keyed entity may proceed, and on
// success charges it against the chain's counters. A rejected write is
// expected steady-state behavior in cyclic graphs, not an error.
func (b *Budget) Admit(key string) bool {
	if b.totalWrites > b.globalLimit {
		return false
	}
	if b.perEntity[key] > b.recursionLimit {
		return false
	}
	b.totalWrites++
	b.perEntity[key]++
	return true
}

// InFlight returns the number of writes charged to the current chain.
// It is zero at steady state.
func (b *Budget) InFlight() int { return b.totalWrites }

// Depth returns the current chain's write count for one entity.
func (b *Budget) Depth(key string) int { return b.perEntity[key] }

// Suppress sets the propagation-suppression flag and returns the
// function that clears it. The flag is a plain scoped boolean, not a
// counter; callers pair Suppress with a deferred restore so the flag
// is clear again even when a callback panics.
func (b *Budget) Suppress() (restore func()) {
	b.suppressed = true
	return func() { b.suppressed = false }
}

// Suppressed reports whether dispatches are currently suppressed.
func (b *Budget) Suppressed() bool { return b.suppressed }

// Enqueue appends one callback dispatch to the chain's queue.
func (b *Budget) Enqueue(fn func()) {
	b.queue = append(b.queue, fn)
}

// Drain runs queued dispatches in FIFO order until the queue is empty
// or the hard ceiling is hit. Only the outermost caller drains; calls
// made while a drain is running (writes performed inside callbacks)
// return immediately and leave their dispatches for the running loop.
//
// When the loop exits, by exhaustion, ceiling, or a panicking
// callback, the chain is over: counters reset to zero and the queue is
// cleared before control leaves Drain.
func (b *Budget) Drain() {
	if b.draining {
		return
	}
	b.draining = true
	defer func() {
		b.draining = false
		b.totalWrites = 0
		b.queue = nil
		clear(b.perEntity)
	}()
	dispatched := 0
	for len(b.queue) > 0 && dispatched < b.dispatchCeiling {
		fn := b.queue[0]
		b.queue = b.queue[1:]
		dispatched++
		fn()
	}
}
