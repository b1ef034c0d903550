package ioring

import (
	"github.com/ioring-go/ioring/internal/completionring"
	"github.com/ioring-go/ioring/internal/opcore"
)

// File is the one concrete external collaborator this runtime ships:
// an async file handle that submits reads, writes, and fsyncs through
// a shared opcore.Pool and completionring.Ring, grounded on folo's
// TcpConnection.receive/send (original_source's
// net/tcp_connection.rs), which is the original's only caller of
// new_operation(...).begin(...) outside the runtime itself. Where
// TcpConnection wraps a WinSock SOCKET and calls WSARecv/WSASend
// inside the begin closure, File wraps a raw fd and calls
// completionring.Ring.Submit inside the same closure shape.
type File struct {
	pool *opcore.Pool
	ring completionring.Ring
	fd   int32
}

// NewFile wraps fd for async I/O through pool and ring. Both must
// outlive the File.
func NewFile(pool *opcore.Pool, ring completionring.Ring, fd int32) *File {
	return &File{pool: pool, ring: ring, fd: fd}
}

// ReadAt begins an asynchronous read of len(buffer) bytes at offset,
// returning a Future that resolves once Drain delivers the read's
// completion, or at once with a SubmissionError if the ring rejects the
// submission.
func (f *File) ReadAt(buffer []byte, offset uint64) *opcore.Future[opcore.Result] {
	handle := f.pool.Allocate(buffer)
	handle.SetOffset(offset)
	return handle.Begin(func(buffer []byte, header *opcore.Header, immediateBytes *uint32) error {
		token := opcore.HeaderToken(header)
		off := packOffset(header)
		if err := f.ring.Submit(completionring.OpRead, f.fd, buffer, off, token); err != nil {
			return err
		}
		return opcore.ErrPendingAsync
	})
}

// WriteAt begins an asynchronous write of buffer at offset.
func (f *File) WriteAt(buffer []byte, offset uint64) *opcore.Future[opcore.Result] {
	handle := f.pool.Allocate(buffer)
	handle.SetOffset(offset)
	return handle.Begin(func(buffer []byte, header *opcore.Header, immediateBytes *uint32) error {
		token := opcore.HeaderToken(header)
		off := packOffset(header)
		if err := f.ring.Submit(completionring.OpWrite, f.fd, buffer, off, token); err != nil {
			return err
		}
		return opcore.ErrPendingAsync
	})
}

// Sync begins an asynchronous fsync of the file.
func (f *File) Sync() *opcore.Future[opcore.Result] {
	handle := f.pool.Allocate(nil)
	return handle.Begin(func(buffer []byte, header *opcore.Header, immediateBytes *uint32) error {
		token := opcore.HeaderToken(header)
		if err := f.ring.Submit(completionring.OpFsync, f.fd, nil, 0, token); err != nil {
			return err
		}
		return opcore.ErrPendingAsync
	})
}

// Drain polls the completion-port ring and resolves whichever
// operations have finished. Callers run this in their own poll loop
// (see cmd/ioringd for a minimal example); it is the Go analog of the
// original's completion-port dispatch thread.
func (f *File) Drain(waitForAtLeastOne bool) error {
	completions, err := f.ring.Drain(waitForAtLeastOne)
	if err != nil {
		return err
	}
	for _, c := range completions {
		f.pool.CompleteAsync(c.Token, c.BytesTransferred, c.Success, c.StatusCode)
	}
	return nil
}

// packOffset reassembles the 64-bit file offset opcore.Handle.SetOffset
// split across Header.OffsetLow/OffsetHigh.
func packOffset(header *opcore.Header) uint64 {
	return uint64(header.OffsetHigh)<<32 | uint64(header.OffsetLow)
}
