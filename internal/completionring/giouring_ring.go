//go:build giouring
// +build giouring

// Under the giouring build tag, NewGiouringRing provides a Ring that
// submits through github.com/pawelgaczynski/giouring, alongside the
// hand-rolled syscall ring in unix_ring.go that NewRing still returns.
// This is the dependency the teacher's go.mod declared
// but never actually imported (its own giouring-tagged file, iouring.go,
// imports the unrelated github.com/iceber/iouring-go instead — a naming
// collision between two different Go io_uring bindings). Wiring it for
// real here is in keeping with the rest of this module's domain stack.
package completionring

import (
	"fmt"
	"sync"

	"github.com/pawelgaczynski/giouring"

	"github.com/ioring-go/ioring/internal/logging"
)

type giouringRing struct {
	mu   sync.Mutex
	ring *giouring.Ring
}

// NewGiouringRing creates a Ring backed by pawelgaczynski/giouring.
// Available when built with -tags giouring.
func NewGiouringRing(config Config) (Ring, error) {
	entries := config.Entries
	if entries == 0 {
		entries = 128
	}

	ring, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("completionring: giouring.CreateRing: %w", err)
	}

	logging.Default().Infof("giouring ring created: entries=%d", entries)
	return &giouringRing{ring: ring}, nil
}

func giouringOpcodeFor(op Op) giouring.Opcode {
	switch op {
	case OpRead:
		return giouring.OpRead
	case OpWrite:
		return giouring.OpWrite
	case OpFsync:
		return giouring.OpFsync
	default:
		return giouring.OpRead
	}
}

func (r *giouringRing) Prepare(op Op, fd int32, buffer []byte, offset uint64, token uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sqe := r.ring.GetSQE()
	if sqe == nil {
		return ErrRingFull
	}

	var addr uintptr
	var length uint32
	if len(buffer) > 0 {
		addr = uintptr(giouring.PointerToUintptr(&buffer[0]))
		length = uint32(len(buffer))
	}

	switch op {
	case OpFsync:
		sqe.PrepareFsync(fd, 0)
	default:
		sqe.PrepareRW(giouringOpcodeFor(op), fd, addr, length, offset)
	}
	sqe.SetUserData(token)
	return nil
}

func (r *giouringRing) Flush() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	submitted, err := r.ring.Submit()
	if err != nil {
		return 0, fmt.Errorf("completionring: giouring submit: %w", err)
	}
	return submitted, nil
}

func (r *giouringRing) Submit(op Op, fd int32, buffer []byte, offset uint64, token uint64) error {
	if err := r.Prepare(op, fd, buffer, offset, token); err != nil {
		return err
	}
	_, err := r.Flush()
	return err
}

func (r *giouringRing) Drain(waitForAtLeastOne bool) ([]Completion, error) {
	var cqes [64]*giouring.CompletionQueueEvent

	var n uint32
	var err error
	if waitForAtLeastOne {
		n, err = r.ring.WaitCQEs(cqes[:], 1)
	} else {
		n, err = r.ring.PeekCQEBatch(cqes[:])
	}
	if err != nil {
		return nil, fmt.Errorf("completionring: giouring wait: %w", err)
	}

	completions := make([]Completion, 0, n)
	for i := uint32(0); i < n; i++ {
		cqe := cqes[i]
		completions = append(completions, Completion{
			Token:            cqe.UserData,
			BytesTransferred: uint32(max32(cqe.Res, 0)),
			Success:          cqe.Res >= 0,
			StatusCode:       cqe.Res,
		})
	}
	if n > 0 {
		r.ring.CQAdvance(n)
	}
	return completions, nil
}

func (r *giouringRing) Close() error {
	r.ring.QueueExit()
	return nil
}
