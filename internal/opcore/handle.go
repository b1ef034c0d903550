package opcore

import (
	"errors"
	"runtime"
	"time"

	"github.com/ioring-go/ioring/internal/onceevent"
	"github.com/ioring-go/ioring/internal/slabpool"
)

// SubmitFunc is the submission closure contract (SPEC_FULL.md §6.2): a
// single-use function that invokes the OS submission API with the given
// buffer view and header pointer, writing the synchronous byte count
// into immediateBytes if it completes inline. It must return one of:
// ErrPendingAsync (or a wrapper of it) if the OS accepted the
// submission; nil if it completed synchronously; any other error if the
// OS rejected the submission outright.
type SubmitFunc func(buffer []byte, header *Header, immediateBytes *uint32) error

// Handle is a move-only operation handle (SPEC_FULL.md §4.2): ownership
// of exactly one metadata block from allocation until Begin resolves it
// one of three ways, or — the safety-net path — until it is garbage
// collected without Begin ever being called.
type Handle struct {
	pool     *Pool
	key      slabpool.Key
	receiver onceevent.EmbeddedReceiver[Result]
	disarmed bool
}

// SetOffset writes a 64-bit byte offset into the two 32-bit halves of
// the block's OS header. Valid only before Begin.
func (h *Handle) SetOffset(offset uint64) {
	blk := h.pool.slab.Get(h.key)
	blk.Header.OffsetLow = uint32(offset)
	blk.Header.OffsetHigh = uint32(offset >> 32)
}

// Begin runs the begin protocol (SPEC_FULL.md §4.2):
//
//  1. take the once-event's receiver out (already done at Allocate time
//     for this embedded-flavor implementation; Begin takes ownership of
//     it from the Handle instead).
//  2. record the start timestamp.
//  3. disarm the handle's finalizer — the block must not be freed by
//     the GC-driven safety net from here on.
//  4. invoke the closure with the buffer view, header pointer, and
//     immediate-bytes cell.
//  5. branch on the outcome.
//  6. return a Future that will resolve exactly once.
func (h *Handle) Begin(submit SubmitFunc) *Future[Result] {
	blk := h.pool.slab.Get(h.key)
	receiver := h.receiver

	blk.startedAt = time.Now()
	h.disarmed = true
	runtime.SetFinalizer(h, nil)

	blk.pinBuffer()
	err := submit(blk.buffer[:blk.activeLen], &blk.Header, &blk.immediateBytes)

	switch {
	case errors.Is(err, ErrPendingAsync):
		// The OS now owns the block; it will surface through
		// CompleteAsync via the poller. Nothing to do here but await.
		return newPendingFuture(h.pool, h.key, receiver)

	case err == nil:
		h.pool.completeSync(blk)
		return newPendingFuture(h.pool, h.key, receiver)

	default:
		blk.unpinBuffer()
		buf := blk.buffer
		h.pool.observer.ObserveRejected()
		h.pool.release(h.key)
		return newResolvedFuture(Result{Buffer: buf, Err: &SubmissionError{Inner: err}})
	}
}
