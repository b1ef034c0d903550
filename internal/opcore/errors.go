package opcore

import (
	"errors"
	"fmt"
)

// ErrPendingAsync is the sentinel a submission closure (SubmitFunc)
// returns to signal "the OS has accepted the operation and will report
// completion later via the poller" — SPEC_FULL.md §6.2's
// error(pending-async sentinel) outcome. It carries no information of
// its own; completion-port backends should wrap it, not replace it, so
// that errors.Is(err, ErrPendingAsync) keeps working.
var ErrPendingAsync = errors.New("opcore: operation pending, awaiting async completion")

// SubmissionError wraps a closure's rejection of a submission — the OS
// refused the call before taking ownership of the block (SPEC_FULL.md
// §7b).
type SubmissionError struct {
	Inner error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("opcore: submission rejected: %v", e.Inner)
}

func (e *SubmissionError) Unwrap() error { return e.Inner }

// CompletionError wraps a non-success status reported by the poller for
// an operation the OS previously accepted (SPEC_FULL.md §7c).
type CompletionError struct {
	StatusCode int32
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("opcore: completion failed with status %d", e.StatusCode)
}

// ContractViolationError indicates a caller violated the submission
// closure contract (SPEC_FULL.md §7d) — e.g. a pool was closed while
// non-empty, or a handle was dropped without calling Begin. These are
// bugs in the caller, not transient failures, and are typically fatal
// to the containing agent.
type ContractViolationError struct {
	Msg string
}

func (e *ContractViolationError) Error() string {
	return "opcore: contract violation: " + e.Msg
}
