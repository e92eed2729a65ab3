package gate_test

import (
	"context"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmill/tripmill/internal/gate"
)

func promise(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() { defer close(done); fn() }()
	return done
}

func maxOfChannel(ch <-chan int) int {
	var maxI int
	for i := range ch {
		maxI = max(i, maxI)
	}
	return maxI
}

func TestAcquireWithinCapacity(t *testing.T) {
	g := gate.New(2)

	p1, err := g.Acquire(context.Background())
	require.NoError(t, err)
	p2, err := g.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, g.Outstanding())

	p1.Release()
	p2.Release()
	assert.Equal(t, 0, g.Outstanding())
}

func TestAcquireBlocksAtCapacity(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := gate.New(1)
		p1, err := g.Acquire(context.Background())
		require.NoError(t, err)

		var p2 *gate.Permit
		done := promise(func() { p2, _ = g.Acquire(context.Background()) })
		synctest.Wait()
		select {
		case <-done:
			assert.Fail(t, "Acquire was not blocked at capacity")
		default:
		}

		p1.Release()
		<-done
		require.NotNil(t, p2)
		assert.Equal(t, 1, g.Outstanding())
		p2.Release()
	})
}

func TestGateBound(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		const (
			capacity = 3
			callers  = 10
		)
		var (
			inflight  atomic.Int32
			inflights = make(chan int, callers)
		)
		g := gate.New(capacity)

		dones := make([]<-chan struct{}, callers)
		for i := range dones {
			dones[i] = promise(func() {
				p, err := g.Acquire(context.Background())
				assert.NoError(t, err)
				defer p.Release()
				inflights <- int(inflight.Add(1))
				defer inflight.Add(-1)
				time.Sleep(time.Millisecond)
			})
		}
		for _, done := range dones {
			<-done
		}

		close(inflights)
		assert.LessOrEqual(t, maxOfChannel(inflights), capacity,
			"Breached gate capacity")
		assert.Equal(t, 0, g.Outstanding())
	})
}

func TestTryAcquire(t *testing.T) {
	g := gate.New(1)

	p, ok := g.TryAcquire()
	require.True(t, ok)
	_, ok = g.TryAcquire()
	assert.False(t, ok, "TryAcquire succeeded beyond capacity")

	p.Release()
	p, ok = g.TryAcquire()
	assert.True(t, ok, "TryAcquire failed with free capacity")
	p.Release()
}

func TestCancelWhileWaiting(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := gate.New(1)
		p1, err := g.Acquire(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		var acquireErr error
		done := promise(func() { _, acquireErr = g.Acquire(ctx) })
		synctest.Wait()

		cancel()
		<-done
		assert.ErrorIs(t, acquireErr, context.Canceled)

		// The canceled waiter must not have consumed any capacity.
		p1.Release()
		assert.Equal(t, 0, g.Outstanding())
		p2, err := g.Acquire(context.Background())
		require.NoError(t, err)
		p2.Release()
	})
}

func TestReleaseWakesOldestWaiter(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := gate.New(1)
		p, err := g.Acquire(context.Background())
		require.NoError(t, err)

		var order []string
		wait := func(name string) <-chan struct{} {
			return promise(func() {
				p, err := g.Acquire(context.Background())
				assert.NoError(t, err)
				order = append(order, name)
				p.Release()
			})
		}

		firstDone := wait("first")
		synctest.Wait()
		secondDone := wait("second")
		synctest.Wait()

		p.Release()
		<-firstDone
		<-secondDone
		assert.Equal(t, []string{"first", "second"}, order)
	})
}

func TestDoubleReleasePanics(t *testing.T) {
	g := gate.New(1)
	p, err := g.Acquire(context.Background())
	require.NoError(t, err)

	p.Release()
	assert.Panics(t, p.Release, "Second Release did not panic")
}
