// Package gate provides counting admission control for calls against a
// capacity-constrained resource.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// Gate bounds the number of concurrently outstanding leases on a resource.
// Callers acquire a [Permit] before using the resource and release it when
// finished, on every exit path.
//
// A Gate must not be copied after first use.
type Gate struct {
	capacity int

	// mu protects the invariant that leased never exceeds capacity, and that
	// every channel in waiters has exactly one goroutine selecting on it.
	// Leases transfer directly from a releaser to the oldest waiter without
	// passing through the leased count.
	mu      sync.Mutex
	leased  int
	waiters deque.Deque[chan struct{}]
}

// New creates a Gate with the provided capacity. It panics if capacity < 1;
// callers that want no limit should not gate at all.
func New(capacity int) *Gate {
	if capacity < 1 {
		panic("gate: capacity must be at least 1")
	}
	return &Gate{capacity: capacity}
}

// Capacity returns the fixed capacity of the gate.
func (g *Gate) Capacity() int {
	return g.capacity
}

// Outstanding returns the number of permits currently held, including any
// lease in the middle of a handoff to a waiter.
func (g *Gate) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leased
}

// Acquire blocks the calling goroutine until a permit is available or ctx is
// canceled. A non-nil error indicates that no permit is held and that the
// caller must not touch the gated resource.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	g.mu.Lock()
	if g.leased < g.capacity && g.waiters.Len() == 0 {
		g.leased++
		g.mu.Unlock()
		return &Permit{gate: g}, nil
	}

	granted := make(chan struct{})
	g.waiters.PushBack(granted)
	g.mu.Unlock()

	select {
	case <-granted:
		return &Permit{gate: g}, nil

	case <-ctx.Done():
		g.mu.Lock()
		at := g.waiters.Index(func(ch chan struct{}) bool { return ch == granted })
		if at >= 0 {
			g.waiters.Remove(at)
			g.mu.Unlock()
			return nil, ctx.Err()
		}
		g.mu.Unlock()

		// A releaser already popped our channel and committed its lease to us.
		// Accept the handoff, then immediately pass the lease onward so that
		// cancellation never strands capacity.
		<-granted
		g.yield()
		return nil, ctx.Err()
	}
}

// TryAcquire acquires a permit without blocking, reporting whether it
// succeeded. It never jumps ahead of goroutines already waiting in Acquire.
func (g *Gate) TryAcquire() (*Permit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.leased < g.capacity && g.waiters.Len() == 0 {
		g.leased++
		return &Permit{gate: g}, true
	}
	return nil, false
}

// yield disposes of one lease, either by handing it to the oldest waiter or by
// retiring it.
func (g *Gate) yield() {
	g.mu.Lock()
	if g.waiters.Len() > 0 {
		granted := g.waiters.PopFront()
		g.mu.Unlock()
		close(granted)
		return
	}
	g.leased--
	g.mu.Unlock()
}

// Permit represents one unit of a gate's capacity. The holder must call
// Release exactly once.
type Permit struct {
	gate     *Gate
	released atomic.Bool
}

// Release returns the permit's capacity to the gate, waking the oldest waiter
// if there is one. It panics if the permit was already released: a double
// release is a programming error that would otherwise corrupt the gate's
// accounting silently.
func (p *Permit) Release() {
	if p.released.Swap(true) {
		panic("gate: permit released twice")
	}
	p.gate.yield()
}
