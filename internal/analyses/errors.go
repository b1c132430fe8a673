package analyses

import "errors"

var (
	// ErrNotFound marks a cache miss. It is recovered internally by the
	// resolver and never surfaced to callers as a failure.
	ErrNotFound = errors.New("not found")

	// ErrAnalysisFailed covers external analyzer errors and response shape
	// mismatches. The whole batch fails; nothing is persisted or returned.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrPersistenceFailed covers transactional write failures after a
	// successful analyzer call. The engine fails closed: results it could
	// not persist are never returned.
	ErrPersistenceFailed = errors.New("persistence failed")
)
