package opcore

import (
	"math"
	"runtime"
	"time"

	"github.com/ioring-go/ioring/internal/logging"
	"github.com/ioring-go/ioring/internal/onceevent"
	"github.com/ioring-go/ioring/internal/slabpool"
)

// maxSubmissionBytes is the largest active length a single operation
// may present to the OS header's 32-bit byte-count fields. Buffers
// longer than this are clamped at allocation time (SPEC_FULL.md §9,
// Open Question 2): the clamp itself is silent by design (matching the
// original), but is now logged once per occurrence via the Pool's logger
// rather than happening invisibly.
const maxSubmissionBytes = math.MaxUint32

// Observer receives lifecycle events for every operation passing
// through a Pool. It deliberately mirrors the shape of the teacher's
// metrics Observer (metrics.go), generalized from ublk's read/write/
// discard/flush categories to this module's allocate/complete/reject
// categories.
type Observer interface {
	ObserveAllocate()
	ObserveCompletedAsync(bytes uint64, latencyNs uint64, success bool)
	ObserveCompletedSync(bytes uint64, latencyNs uint64, success bool)
	ObserveRejected()
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAllocate()                                    {}
func (NoOpObserver) ObserveCompletedAsync(uint64, uint64, bool)          {}
func (NoOpObserver) ObserveCompletedSync(uint64, uint64, bool)           {}
func (NoOpObserver) ObserveRejected()                                    {}

var _ Observer = NoOpObserver{}

// Pool is the operation metadata pool (SPEC_FULL.md §4.1): it allocates
// blocks from a stable-address slab chain, hands out Handles, and is the
// single point through which both completion paths (§4.3) reclaim a
// block's slot.
type Pool struct {
	slab     *slabpool.Pool[block]
	logger   *logging.Logger
	observer Observer
}

// NewPool creates an empty pool. A nil logger/observer falls back to
// logging.Default() and NoOpObserver respectively.
func NewPool(logger *logging.Logger, observer Observer) *Pool {
	if logger == nil {
		logger = logging.Default()
	}
	if observer == nil {
		observer = NoOpObserver{}
	}
	return &Pool{slab: slabpool.New[block](), logger: logger, observer: observer}
}

// Allocate reserves a slot, constructs a fresh block holding buffer and
// a fresh embedded once-event, and returns a Handle owning it. Buffers
// whose length exceeds the OS's 32-bit I/O limit are clamped (the
// unused tail remains allocated but invisible to the OS) and a warning
// is logged — see maxSubmissionBytes.
func (p *Pool) Allocate(buffer []byte) *Handle {
	active := len(buffer)
	if active > maxSubmissionBytes {
		p.logger.Warnf("clamping oversize buffer: requested=%d clamped=%d", active, maxSubmissionBytes)
		active = maxSubmissionBytes
	}

	key, blk := p.slab.Allocate()
	blk.buffer = buffer
	blk.activeLen = uint32(active)
	blk.key = key

	sender, receiver := onceevent.NewEmbedded(&blk.eventStorage)
	blk.sender = sender

	p.observer.ObserveAllocate()

	h := &Handle{pool: p, key: key, receiver: receiver}
	runtime.SetFinalizer(h, finalizeHandle)
	return h
}

// finalizeHandle is the "dropped before submission" safety net
// (SPEC_FULL.md §4.2): Go has no destructors, so a Handle that is
// garbage-collected without having called Begin releases its slot here
// instead, logging a contract violation. Begin clears this finalizer
// once ownership has moved elsewhere, so the common path never reaches
// the GC's finalizer queue.
func finalizeHandle(h *Handle) {
	if h.disarmed {
		return
	}
	h.pool.logger.Errorf("operation handle dropped without Begin, releasing leaked slot key=%+v", h.key)
	h.pool.release(h.key)
}

// release forcibly returns key's slot to the pool, bypassing the
// once-event's reference count. Safe only where no receiver will ever
// poll the block's storage again: Begin's submission-rejected path
// (the Future it returns is already-resolved by value and never
// touches the once-event) and finalizeHandle (Begin was never called,
// so no receiver was ever handed to a caller).
func (p *Pool) release(key slabpool.Key) {
	p.slab.Release(key)
}

// releaseIfInert returns key's slot to the pool only once both the
// once-event's sender and receiver sides have relinquished their
// reference (onceevent.Storage.IsInert). This is the path completeSync
// and CompleteAsync must use: releasing on delivery alone would let
// slabpool's LIFO free list (internal/slabpool/slab.go Pool.Allocate)
// hand this exact slot to the next Allocate call before the caller's
// Future has actually collected the delivered result — corrupting both
// operations if several are kept in flight and harvested later, which
// is the normal usage pattern Future/Poll exist for.
func (p *Pool) releaseIfInert(key slabpool.Key) {
	blk := p.slab.Get(key)
	if blk.eventStorage.IsInert() {
		p.slab.Release(key)
	}
}

// completeSync runs the synchronous-completion path (SPEC_FULL.md §4.3):
// the submission closure returned ok, so the byte count already sits in
// the block's immediate-bytes cell.
func (p *Pool) completeSync(blk *block) {
	elapsed := time.Since(blk.startedAt)
	buf := blk.buffer[:blk.immediateBytes]
	sender := blk.sender
	blk.unpinBuffer()

	sender.Set(Result{Buffer: buf})
	sender.Release()
	p.observer.ObserveCompletedSync(uint64(blk.immediateBytes), uint64(elapsed), true)
	p.releaseIfInert(blk.key)
}

// CompleteAsync is the async-completion entry point (SPEC_FULL.md §4.3),
// invoked by a poller (internal/completionring.Ring.Drain) once per
// completed operation. token must be the value Begin's submission
// closure was handed via the header pointer, round-tripped through a
// completion-port facility's user-data / overlapped-pointer field.
func (p *Pool) CompleteAsync(token uint64, bytesTransferred uint32, success bool, statusCode int32) {
	blk := blockFromToken(token)

	elapsed := time.Since(blk.startedAt)
	buf := blk.buffer
	if success {
		buf = buf[:bytesTransferred]
	}
	sender := blk.sender
	blk.unpinBuffer()
	blk.Header.StatusCode = statusCode
	blk.Header.BytesTransferred = bytesTransferred

	var res Result
	if success {
		res = Result{Buffer: buf}
	} else {
		res = Result{Buffer: buf, Err: &CompletionError{StatusCode: statusCode}}
	}
	sender.Set(res)
	sender.Release()
	p.observer.ObserveCompletedAsync(uint64(bytesTransferred), uint64(elapsed), success)
	p.releaseIfInert(blk.key)
}

// IsEmpty reports whether no operation is outstanding or awaiting
// completion (SPEC_FULL.md §8, Invariant 1).
func (p *Pool) IsEmpty() bool {
	return p.slab.IsEmpty()
}

// Close releases the pool's backing storage. Panics — a contract
// violation, not a recoverable error — if any operation is still
// outstanding.
func (p *Pool) Close() {
	p.slab.Close()
}
