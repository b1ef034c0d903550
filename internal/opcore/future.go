package opcore

import (
	"runtime"

	"github.com/ioring-go/ioring/internal/onceevent"
	"github.com/ioring-go/ioring/internal/slabpool"
)

// Future is this module's poll-based stand-in for the original design's
// native async fn/.await (SPEC_FULL.md §4.2a — there is no task executor
// in this module). A real reactor loop would call Poll from its own
// cycle and re-Poll when wake fires; Wait is a convenience for callers
// with no reactor of their own, such as the CLI demo and synchronous
// tests.
//
// A pending Future holds the receiver half of the block's embedded
// once-event, so the block's slab slot cannot be safely reused until
// this Future has actually collected the delivered value (or has been
// abandoned — see finalizeFuture). pool/key let it tell the pool when
// that has happened.
type Future[T any] struct {
	receiver onceevent.EmbeddedReceiver[T]
	resolved bool
	value    T

	pool     *Pool
	key      slabpool.Key
	released bool
}

// newResolvedFuture builds a Future that is already complete — used for
// the submission-rejected path in Begin, where the result is known
// before any once-event is involved, so there is no receiver reference
// to ever release.
func newResolvedFuture[T any](v T) *Future[T] {
	return &Future[T]{resolved: true, value: v, released: true}
}

// newPendingFuture builds a Future awaiting delivery through receiver.
// It registers a finalizer mirroring Handle's own GC safety net: if the
// caller drops this Future without ever consuming it, the finalizer
// releases the receiver's reference instead, so the block's slot is not
// held forever (SPEC_FULL.md §8, "dropping the awaiter before
// completion leaves the pool eventually empty").
func newPendingFuture[T any](pool *Pool, key slabpool.Key, receiver onceevent.EmbeddedReceiver[T]) *Future[T] {
	f := &Future[T]{pool: pool, key: key, receiver: receiver}
	runtime.SetFinalizer(f, finalizeFuture[T])
	return f
}

// finalizeFuture is the "awaiter dropped before consuming" safety net.
// releaseOnce is idempotent, so this is a no-op on a Future that has
// already resolved normally and cleared its own finalizer.
func finalizeFuture[T any](f *Future[T]) {
	f.releaseOnce()
}

// releaseOnce drops this Future's reference on the once-event and asks
// the pool to reclaim the block's slot, which only actually happens
// once the producer side (completeSync/CompleteAsync) has released its
// own reference too (internal/onceevent/embedded.go Storage.IsInert).
// Clears the finalizer, since the block is no longer this Future's
// responsibility either way.
func (f *Future[T]) releaseOnce() {
	if f.released {
		return
	}
	f.released = true
	f.receiver.Release()
	f.pool.releaseIfInert(f.key)
	runtime.SetFinalizer(f, nil)
}

// Poll matches the once-event poll contract directly (SPEC_FULL.md
// §3.3): wake is re-registered on every call that returns false,
// replacing any earlier one, and only the most recently registered wake
// is invoked, once, when the producer delivers the value.
func (f *Future[T]) Poll(wake func()) (T, bool) {
	if f.resolved {
		return f.value, true
	}
	v, ready := f.receiver.Poll(wake)
	if ready {
		f.value = v
		f.resolved = true
		f.releaseOnce()
	}
	return v, ready
}

// Wait blocks the calling goroutine until the operation resolves,
// grounded on the teacher's channel-per-submission completion pattern
// in internal/uring/iouring.go (ch := make(chan iouring.Result)).
func (f *Future[T]) Wait() T {
	if f.resolved {
		return f.value
	}
	done := make(chan struct{}, 1)
	for {
		v, ready := f.Poll(func() { done <- struct{}{} })
		if ready {
			return v
		}
		<-done
	}
}
