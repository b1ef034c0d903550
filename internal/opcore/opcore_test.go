package opcore

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingObserver lets tests assert which completion path fired.
type countingObserver struct {
	allocated, syncOK, asyncOK, asyncFail, rejected int
}

func (o *countingObserver) ObserveAllocate() { o.allocated++ }
func (o *countingObserver) ObserveCompletedSync(bytes, latencyNs uint64, success bool) {
	if success {
		o.syncOK++
	}
}
func (o *countingObserver) ObserveCompletedAsync(bytes, latencyNs uint64, success bool) {
	if success {
		o.asyncOK++
	} else {
		o.asyncFail++
	}
}
func (o *countingObserver) ObserveRejected() { o.rejected++ }

// Scenario 1: synchronous completion.
func TestBegin_SyncCompletion(t *testing.T) {
	obs := &countingObserver{}
	pool := NewPool(nil, obs)
	defer pool.Close()

	handle := pool.Allocate(make([]byte, 64))
	future := handle.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		*immediateBytes = 64
		return nil
	})

	result := future.Wait()
	require.True(t, result.Ok())
	require.Len(t, result.Buffer, 64)
	require.Equal(t, 1, obs.syncOK)
	require.True(t, pool.IsEmpty())
}

// Scenario 2: accepted-async, completed later by the poller.
func TestBegin_AsyncCompletion(t *testing.T) {
	obs := &countingObserver{}
	pool := NewPool(nil, obs)
	defer pool.Close()

	handle := pool.Allocate(make([]byte, 128))
	var token uint64
	future := handle.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		token = HeaderToken(header)
		return ErrPendingAsync
	})

	require.False(t, pool.IsEmpty())

	pool.CompleteAsync(token, 40, true, 0)

	result := future.Wait()
	require.True(t, result.Ok())
	require.Len(t, result.Buffer, 40)
	require.Equal(t, 1, obs.asyncOK)
	require.True(t, pool.IsEmpty())
}

// Scenario 3: submission rejected outright.
func TestBegin_SubmissionRejected(t *testing.T) {
	obs := &countingObserver{}
	pool := NewPool(nil, obs)
	defer pool.Close()

	sentinel := errors.New("device not ready")
	handle := pool.Allocate(make([]byte, 32))
	future := handle.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		return sentinel
	})

	result := future.Wait()
	require.False(t, result.Ok())
	require.Len(t, result.Buffer, 32)
	var subErr *SubmissionError
	require.ErrorAs(t, result.Err, &subErr)
	require.ErrorIs(t, result.Err, sentinel)
	require.Equal(t, 1, obs.rejected)
	require.True(t, pool.IsEmpty())
}

// Scenario 5: the awaiter is dropped before the poller fires; no leak.
// The slot is only reclaimed once the dropped Future's finalizer runs
// (it never got the chance to consume its result the normal way), so
// this forces a GC cycle and gives the finalizer goroutine a moment to
// run rather than asserting emptiness immediately.
func TestBegin_AwaiterDroppedBeforeCompletion(t *testing.T) {
	pool := NewPool(nil, nil)
	defer pool.Close()

	handle := pool.Allocate(make([]byte, 16))
	var token uint64
	_ = handle.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		token = HeaderToken(header)
		return ErrPendingAsync
	})
	// future intentionally discarded here

	require.NotPanics(t, func() { pool.CompleteAsync(token, 16, true, 0) })
	require.Eventually(t, func() bool {
		runtime.GC()
		return pool.IsEmpty()
	}, time.Second, time.Millisecond)
}

// Scenario 7: two operations kept in flight at once — the normal
// submit-several/drain/harvest pattern this runtime exists for. Op A
// completes first but its Future is deliberately left unconsumed while
// op B is allocated and begun; since slabpool.Pool.Allocate reuses the
// most-recently-freed slot first, an unguarded release after A's
// completion would hand A's exact slot to B and corrupt both once A's
// Future is finally polled.
func TestBegin_TwoInFlightOpsDoNotCorruptEachOther(t *testing.T) {
	pool := NewPool(nil, nil)
	defer pool.Close()

	handleA := pool.Allocate([]byte("aaaa"))
	var tokenA uint64
	futureA := handleA.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		tokenA = HeaderToken(header)
		return ErrPendingAsync
	})

	// A completes, but its Future is not polled/waited yet.
	pool.CompleteAsync(tokenA, 4, true, 0)
	require.False(t, pool.IsEmpty())

	// B is allocated and begun before A's result is ever consumed.
	handleB := pool.Allocate([]byte("bbbb"))
	var tokenB uint64
	futureB := handleB.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		tokenB = HeaderToken(header)
		return ErrPendingAsync
	})
	pool.CompleteAsync(tokenB, 4, true, 0)

	resultA := futureA.Wait()
	resultB := futureB.Wait()

	require.True(t, resultA.Ok())
	require.Equal(t, "aaaa", string(resultA.Buffer))
	require.True(t, resultB.Ok())
	require.Equal(t, "bbbb", string(resultB.Buffer))
	require.True(t, pool.IsEmpty())
}

// Scenario 6: a second delivery on the same once-event panics. The
// poller contract (SPEC_FULL.md §6.3) requires CompleteAsync to be
// invoked exactly once per accepted operation; a second call on the
// same token is exactly the violation this test demonstrates.
func TestCompleteAsync_CalledTwicePanics(t *testing.T) {
	pool := NewPool(nil, nil)

	handle := pool.Allocate(make([]byte, 8))
	var token uint64
	future := handle.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		token = HeaderToken(header)
		return ErrPendingAsync
	})
	pool.CompleteAsync(token, 8, true, 0)
	_ = future.Wait()

	require.Panics(t, func() { pool.CompleteAsync(token, 8, true, 0) })
}

func TestCompletionFailureSurfacesStatus(t *testing.T) {
	obs := &countingObserver{}
	pool := NewPool(nil, obs)
	defer pool.Close()

	handle := pool.Allocate(make([]byte, 4))
	var token uint64
	future := handle.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		token = HeaderToken(header)
		return ErrPendingAsync
	})

	pool.CompleteAsync(token, 0, false, -5)

	result := future.Wait()
	require.False(t, result.Ok())
	var compErr *CompletionError
	require.ErrorAs(t, result.Err, &compErr)
	require.Equal(t, int32(-5), compErr.StatusCode)
	require.Equal(t, 1, obs.asyncFail)
}

func TestSetOffsetWritesBothHalves(t *testing.T) {
	pool := NewPool(nil, nil)
	defer pool.Close()

	handle := pool.Allocate(make([]byte, 4))
	handle.SetOffset(0x1_0000_0002)

	var seenLow, seenHigh uint32
	future := handle.Begin(func(buffer []byte, header *Header, immediateBytes *uint32) error {
		seenLow = header.OffsetLow
		seenHigh = header.OffsetHigh
		*immediateBytes = 4
		return nil
	})
	_ = future.Wait()

	require.Equal(t, uint32(2), seenLow)
	require.Equal(t, uint32(1), seenHigh)
}
