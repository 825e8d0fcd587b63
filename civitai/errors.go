package civitai

import "errors"

// Sentinel errors for upstream lookups. Check with errors.Is.
var (
	// ErrNotFound indicates the upstream has no record for the hash or id.
	// This is a normal outcome and drives missing-ledger bookkeeping.
	ErrNotFound = errors.New("civitai: not found")

	// ErrRateLimited indicates upstream throttling; the caller should back
	// off and may retry within its budget.
	ErrRateLimited = errors.New("civitai: rate limited")

	// ErrTransient indicates a network failure, timeout, server error or
	// malformed response. Distinct from ErrNotFound: it must never produce
	// a missing-ledger entry.
	ErrTransient = errors.New("civitai: transient error")
)

// apiError attaches the upstream HTTP status to one of the sentinel errors.
type apiError struct {
	status int
	kind   error
	msg    string
}

func (e *apiError) Error() string { return e.msg }
func (e *apiError) Unwrap() error { return e.kind }

// StatusCode extracts the upstream HTTP status from a lookup error.
// Returns 0 for errors that never reached the server.
func StatusCode(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status
	}
	return 0
}
