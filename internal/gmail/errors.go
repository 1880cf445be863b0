package gmail

import "errors"

var (
	// ErrUnauthorized indicates the mailbox rejected the access credential.
	// Callers refresh once and retry the same operation a single time; a
	// second rejection aborts the cycle.
	ErrUnauthorized = errors.New("gmail: unauthorized")

	// ErrRefreshFailed indicates the refresh-token grant was rejected. The
	// session is unpollable until the user re-authenticates; the scheduler
	// simply tries again on a later tick.
	ErrRefreshFailed = errors.New("gmail: credential refresh failed")
)
