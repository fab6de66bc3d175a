package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Document stores return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: document does not exist
//   - ErrAlreadyUsed: create of a document id that already exists
//   - ErrConflict: optimistic concurrency check failed; the whole unit of work may be retried
//   - ErrUnavailable: store timed out or is temporarily unreachable; retryable
//   - ErrInvalidState: a staged write cannot be applied (e.g. write after commit)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)

// IsRetryable reports whether err describes a transient store condition that a
// caller may resolve by re-running the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}
