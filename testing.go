package ioring

import (
	"sync"

	"github.com/ioring-go/ioring/internal/completionring"
)

// FakeRing is an in-memory completionring.Ring for tests, adapted from
// the teacher's MockBackend: same call-tracking-counters-plus-mutex
// style, but backing an in-memory byte buffer addressed by fd instead
// of ublk's fixed block-device surface. Completions queue up on
// Prepare/Submit and are handed back in FIFO order from Drain, so
// tests can exercise the async completion path deterministically
// without a real kernel.
type FakeRing struct {
	mu sync.Mutex

	files map[int32][]byte

	pending []completionring.Completion
	closed  bool

	prepareCalls int
	flushCalls   int
	drainCalls   int
}

// NewFakeRing creates a FakeRing with no registered files.
func NewFakeRing() *FakeRing {
	return &FakeRing{files: make(map[int32][]byte)}
}

// RegisterFile associates fd with an in-memory backing buffer, letting
// tests simulate reads/writes against a particular file descriptor
// without opening a real file.
func (r *FakeRing) RegisterFile(fd int32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[fd] = data
}

func (r *FakeRing) Prepare(op completionring.Op, fd int32, buffer []byte, offset uint64, token uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prepareCalls++

	completion := completionring.Completion{Token: token, Success: true}
	backing, ok := r.files[fd]
	if !ok {
		completion.Success = false
		completion.StatusCode = -2 // ENOENT
		r.pending = append(r.pending, completion)
		return nil
	}

	switch op {
	case completionring.OpRead:
		n := copy(buffer, backing[minInt(offset, uint64(len(backing))):])
		completion.BytesTransferred = uint32(n)
	case completionring.OpWrite:
		end := offset + uint64(len(buffer))
		if end > uint64(len(backing)) {
			grown := make([]byte, end)
			copy(grown, backing)
			backing = grown
			r.files[fd] = backing
		}
		n := copy(backing[offset:], buffer)
		completion.BytesTransferred = uint32(n)
	case completionring.OpFsync:
		// nothing to do against an in-memory buffer
	}

	r.pending = append(r.pending, completion)
	return nil
}

func minInt(a, limit uint64) uint64 {
	if a > limit {
		return limit
	}
	return a
}

func (r *FakeRing) Flush() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushCalls++
	return uint32(len(r.pending)), nil
}

func (r *FakeRing) Submit(op completionring.Op, fd int32, buffer []byte, offset uint64, token uint64) error {
	if err := r.Prepare(op, fd, buffer, offset, token); err != nil {
		return err
	}
	_, err := r.Flush()
	return err
}

func (r *FakeRing) Drain(waitForAtLeastOne bool) ([]completionring.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drainCalls++
	drained := r.pending
	r.pending = nil
	return drained, nil
}

func (r *FakeRing) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (r *FakeRing) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CallCounts returns how many times each Ring method has been invoked.
func (r *FakeRing) CallCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]int{
		"prepare": r.prepareCalls,
		"flush":   r.flushCalls,
		"drain":   r.drainCalls,
	}
}

var _ completionring.Ring = (*FakeRing)(nil)
