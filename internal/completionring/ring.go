// Package completionring provides the completion-port facility that
// internal/opcore submits operations through. It generalizes the
// teacher's internal/uring package (whose Ring/Batch/Result interfaces
// spoke only in terms of ublk URING_CMD control and I/O commands) into
// a facility that submits plain read/write/fsync SQEs addressed by file
// offset, carrying an opaque user_data token derived from
// opcore.HeaderToken.
package completionring

import "errors"

// ErrRingFull is returned when the submission queue has no free slot.
// Mirrors the teacher's uring.ErrRingFull.
var ErrRingFull = errors.New("completionring: submission queue full")

// Op identifies which kind of SQE a Ring should prepare.
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpFsync
)

// Completion is one drained CQE, already translated into the shape
// opcore.Pool.CompleteAsync expects.
type Completion struct {
	Token            uint64
	BytesTransferred uint32
	Success          bool
	StatusCode       int32
}

// Ring is the completion-port facility this module's operation lifecycle
// manager submits through. Where the teacher's uring.Ring spoke in terms
// of SubmitCtrlCmd/SubmitIOCmd/PrepareIOCmd/FlushSubmissions against
// ublk's fixed control and queue devices, Ring here submits read, write,
// and fsync SQEs against an arbitrary fd and offset, with the caller
// supplying the token to stash in user_data.
type Ring interface {
	// Close closes the ring and releases its mapped memory.
	Close() error

	// Prepare writes an SQE for op into the ring's submission queue
	// without flushing it to the kernel, enabling several operations to
	// be batched into a single io_uring_enter call via Flush. Returns
	// ErrRingFull if the submission queue has no free slot.
	Prepare(op Op, fd int32, buffer []byte, offset uint64, token uint64) error

	// Flush submits every SQE prepared since the last Flush with a
	// single io_uring_enter syscall and returns the number submitted.
	Flush() (uint32, error)

	// Submit is Prepare followed immediately by Flush, for the common
	// case of one operation at a time.
	Submit(op Op, fd int32, buffer []byte, offset uint64, token uint64) error

	// Drain waits for at least one completion if waitForAtLeastOne is
	// true, then returns every completion currently available without
	// blocking further.
	Drain(waitForAtLeastOne bool) ([]Completion, error)
}

// Config configures a Ring.
type Config struct {
	// Entries is the submission queue depth. The completion queue is
	// sized to twice this, matching the teacher's minimalRing.
	Entries uint32
}

// NewRing creates the raw-syscall Ring from unix_ring.go, with or
// without the giouring build tag. The pawelgaczynski/giouring binding is
// reached only through NewGiouringRing, which works when built with the
// giouring tag and returns an error otherwise (see giouring_ring.go /
// iouring_stub.go).
func NewRing(config Config) (Ring, error) {
	return newRing(config)
}
