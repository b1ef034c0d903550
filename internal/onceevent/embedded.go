package onceevent

// Storage is caller-owned pinned storage embedding a once-event plus a
// small reference count, mirroring the original design's
// OnceEventEmbeddedStorage: each of the sender and receiver holds one of
// the (at most two) references, and the storage becomes inert — safe for
// the owning structure to reinitialize and reuse — once both have
// relinquished theirs. This is the flavor used inside opcore.block: the
// once-event lives as a plain field of the operation metadata block
// rather than as a separately pool-allocated object.
type Storage[T any] struct {
	c   core[T]
	ref int8
}

// EmbeddedSender is the embedded sender flavor.
type EmbeddedSender[T any] struct{ s *Storage[T] }

// EmbeddedReceiver is the embedded receiver flavor.
type EmbeddedReceiver[T any] struct{ s *Storage[T] }

// NewEmbedded (re)initializes storage in place — storage's address must
// not change afterward — and returns a fresh sender/receiver pair.
func NewEmbedded[T any](storage *Storage[T]) (EmbeddedSender[T], EmbeddedReceiver[T]) {
	*storage = Storage[T]{ref: 2}
	return EmbeddedSender[T]{s: storage}, EmbeddedReceiver[T]{s: storage}
}

// Set delivers v through the event.
func (s EmbeddedSender[T]) Set(v T) {
	s.s.c.set(v)
}

// Release drops the sender's reference.
func (s EmbeddedSender[T]) Release() {
	s.s.ref--
}

// Poll attempts to collect the value, registering wake if not yet ready.
func (r EmbeddedReceiver[T]) Poll(wake func()) (T, bool) {
	return r.s.c.poll(wake)
}

// Release drops the receiver's reference.
func (r EmbeddedReceiver[T]) Release() {
	r.s.ref--
}

// IsInert reports whether both ends have released their reference, so
// the owning structure may safely call NewEmbedded again.
func (s *Storage[T]) IsInert() bool {
	return s.ref == 0
}

// RefCount returns the current reference count (0, 1, or 2).
func (s *Storage[T]) RefCount() int8 {
	return s.ref
}
