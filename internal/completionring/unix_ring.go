package completionring

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ioring-go/ioring/internal/logging"
)

// Adapted from the teacher's internal/uring/minimal.go: same raw
// io_uring_setup/io_uring_enter syscall plumbing and hand-rolled
// SQE/CQE layouts (the kernel doesn't expose these through
// golang.org/x/sys/unix), generalized from ublk's 128-byte URING_CMD
// SQE/32-byte CQE pair to the kernel's standard 64-byte SQE and 16-byte
// CQE used by IORING_OP_READ/WRITE/FSYNC.

const (
	__NR_io_uring_setup = 425
	__NR_io_uring_enter = 426

	ioringOpRead  = 22
	ioringOpWrite = 23
	ioringOpFsync = 3

	ioringEnterGetevents = 1 << 0

	sqeSize = 64
	cqeSize = 16
)

// sqe is the kernel's standard io_uring_sqe layout.
type sqe struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64
	addr        uint64
	len         uint32
	opcodeFlags uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceFdIn  int32
	addr3       uint64
	_           uint64
}

// cqe is the kernel's standard io_uring_cqe layout.
type cqe struct {
	userData uint64
	res      int32
	flags    uint32
}

type ioUringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCpu  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        ringOffsets
	cqOff        ringOffsets
}

type ringOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

// unixRing is the default Ring implementation, built directly on raw
// io_uring syscalls without any third-party io_uring binding.
type unixRing struct {
	mu     sync.Mutex
	fd     int
	params ioUringParams
	sqMem  []byte
	cqMem  []byte
	sqAddr unsafe.Pointer
	cqAddr unsafe.Pointer

	pending uint32 // SQEs prepared since the last Flush
}

func newRing(config Config) (Ring, error) {
	logger := logging.Default()
	entries := config.Entries
	if entries == 0 {
		entries = 128
	}
	logger.Debugf("creating io_uring: entries=%d", entries)

	params := ioUringParams{sqEntries: entries, cqEntries: entries * 2}

	ringFd, _, errno := syscall.Syscall(__NR_io_uring_setup, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("completionring: io_uring_setup: %w", errno)
	}

	sqSize := int(params.sqOff.array + params.sqEntries*4)
	cqSize := int(params.cqOff.cqes() + params.cqEntries*cqeSize)

	sqMem, err := unix.Mmap(int(ringFd), 0, sqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		syscall.Close(int(ringFd))
		return nil, fmt.Errorf("completionring: mmap sq ring: %w", err)
	}
	cqMem, err := unix.Mmap(int(ringFd), 0x8000000, cqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(sqMem)
		syscall.Close(int(ringFd))
		return nil, fmt.Errorf("completionring: mmap cq ring: %w", err)
	}
	sqeMem, err := unix.Mmap(int(ringFd), 0x10000000, int(params.sqEntries)*sqeSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(sqMem)
		unix.Munmap(cqMem)
		syscall.Close(int(ringFd))
		return nil, fmt.Errorf("completionring: mmap sqes: %w", err)
	}

	r := &unixRing{
		fd:     int(ringFd),
		params: params,
		sqMem:  sqMem,
		cqMem:  cqMem,
		sqAddr: unsafe.Pointer(&sqeMem[0]),
		cqAddr: unsafe.Add(unsafe.Pointer(&cqMem[0]), params.cqOff.cqes()),
	}
	logger.Infof("io_uring created: fd=%d sq_entries=%d cq_entries=%d", r.fd, params.sqEntries, params.cqEntries)
	return r, nil
}

// cqes returns the byte offset of the CQE array within the CQ ring,
// matching the kernel's struct io_cqring_offsets.cqes field name.
// ringOffsets uses the SQ field names; in the CQ layout the sixth
// field (dropped here) holds cqes.
func (o ringOffsets) cqes() uint32 { return o.dropped }

func opcodeFor(op Op) uint8 {
	switch op {
	case OpRead:
		return ioringOpRead
	case OpWrite:
		return ioringOpWrite
	case OpFsync:
		return ioringOpFsync
	default:
		return ioringOpRead
	}
}

func (r *unixRing) Prepare(op Op, fd int32, buffer []byte, offset uint64, token uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sqHead := (*uint32)(unsafe.Add(unsafe.Pointer(&r.sqMem[0]), r.params.sqOff.head))
	sqTail := (*uint32)(unsafe.Add(unsafe.Pointer(&r.sqMem[0]), r.params.sqOff.tail))
	if (*sqTail - *sqHead) >= r.params.sqEntries {
		return ErrRingFull
	}

	mask := r.params.sqEntries - 1
	index := *sqTail & mask
	slot := (*sqe)(unsafe.Add(r.sqAddr, uintptr(index)*sqeSize))

	var addr uint64
	var length uint32
	if len(buffer) > 0 {
		addr = uint64(uintptr(unsafe.Pointer(&buffer[0])))
		length = uint32(len(buffer))
	}

	*slot = sqe{
		opcode:   opcodeFor(op),
		fd:       fd,
		off:      offset,
		addr:     addr,
		len:      length,
		userData: token,
	}

	sqArray := (*uint32)(unsafe.Add(unsafe.Pointer(&r.sqMem[0]), r.params.sqOff.array))
	*(*uint32)(unsafe.Add(unsafe.Pointer(sqArray), uintptr(index)*4)) = index

	*sqTail = *sqTail + 1
	r.pending++
	return nil
}

func (r *unixRing) Flush() (uint32, error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = 0
	r.mu.Unlock()

	if pending == 0 {
		return 0, nil
	}

	submitted, _, errno := syscall.Syscall6(__NR_io_uring_enter, uintptr(r.fd), uintptr(pending), 0, 0, 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("completionring: io_uring_enter: %w", errno)
	}
	return uint32(submitted), nil
}

func (r *unixRing) Submit(op Op, fd int32, buffer []byte, offset uint64, token uint64) error {
	if err := r.Prepare(op, fd, buffer, offset, token); err != nil {
		return err
	}
	_, err := r.Flush()
	return err
}

func (r *unixRing) Drain(waitForAtLeastOne bool) ([]Completion, error) {
	minComplete := uintptr(0)
	if waitForAtLeastOne {
		minComplete = 1
	}

	if waitForAtLeastOne {
		_, _, errno := syscall.Syscall6(__NR_io_uring_enter, uintptr(r.fd), 0, minComplete, ioringEnterGetevents, 0, 0)
		if errno != 0 {
			return nil, fmt.Errorf("completionring: io_uring_enter (wait): %w", errno)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cqHead := (*uint32)(unsafe.Add(unsafe.Pointer(&r.cqMem[0]), r.params.cqOff.head))
	cqTail := (*uint32)(unsafe.Add(unsafe.Pointer(&r.cqMem[0]), r.params.cqOff.tail))
	mask := r.params.cqEntries - 1

	var completions []Completion
	for *cqHead != *cqTail {
		index := *cqHead & mask
		entry := (*cqe)(unsafe.Add(r.cqAddr, uintptr(index)*cqeSize))

		completions = append(completions, Completion{
			Token:            entry.userData,
			BytesTransferred: uint32(max32(entry.res, 0)),
			Success:          entry.res >= 0,
			StatusCode:       entry.res,
		})
		*cqHead = *cqHead + 1
	}
	return completions, nil
}

func max32(v int32, floor int32) int32 {
	if v < floor {
		return floor
	}
	return v
}

func (r *unixRing) Close() error {
	unix.Munmap(r.sqMem)
	unix.Munmap(r.cqMem)
	return syscall.Close(r.fd)
}
