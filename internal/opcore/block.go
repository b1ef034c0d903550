package opcore

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/ioring-go/ioring/internal/onceevent"
	"github.com/ioring-go/ioring/internal/slabpool"
)

// Header is the operation metadata block's OS-facing prefix. It must
// remain the literal first field of block (Go guarantees a pointer to a
// struct is a pointer to its first field, recursively — the same
// property the teacher's uapi wire structs rely on for kernel-layout
// compatibility), so that a *Header obtained from this package can be
// hand out to a completion-port facility and cast back to *block once
// the OS returns it.
//
// On an IOCP-style backend this aliases OVERLAPPED directly; on the
// io_uring backend in internal/completionring, OffsetLow/OffsetHigh are
// packed into the SQE's 64-bit offset field before submission, and
// StatusCode/BytesTransferred are filled in by the async completion
// path once the matching CQE arrives.
type Header struct {
	OffsetLow        uint32
	OffsetHigh       uint32
	StatusCode       int32
	BytesTransferred uint32
}

// compile-time layout assertion, matching the teacher's
// var _ [N]byte = [unsafe.Sizeof(T{})]byte{} style in internal/uapi.
var _ [16]byte = [unsafe.Sizeof(Header{})]byte{}

// block is the operation metadata block (SPEC_FULL.md §3.2). Its
// address is stable for its entire lifetime because it only ever lives
// inside a slabpool.Pool page, which pins its backing array.
type block struct {
	Header Header // must stay first; see Header's doc comment

	buffer         []byte
	activeLen      uint32
	immediateBytes uint32
	key            slabpool.Key

	sender       onceevent.EmbeddedSender[Result]
	eventStorage onceevent.Storage[Result]

	startedAt time.Time
	bufPin    runtime.Pinner
}

// HeaderToken returns the opaque 64-bit value a completion-port facility
// should be given as its per-submission user-data / overlapped-pointer
// argument, derived from the header pointer a SubmitFunc closure
// receives. internal/completionring's ring adapters use this to fill in
// an SQE's user_data field; blockFromToken reverses it exactly once the
// matching CQE arrives, so the two must always be used as a pair.
func HeaderToken(h *Header) uint64 {
	return uint64(uintptr(unsafe.Pointer(h)))
}

func blockFromToken(token uint64) *block {
	return (*block)(unsafe.Pointer(uintptr(token)))
}

func (b *block) pinBuffer() {
	if len(b.buffer) > 0 {
		b.bufPin.Pin(&b.buffer[0])
	}
}

func (b *block) unpinBuffer() {
	b.bufPin.Unpin()
}
