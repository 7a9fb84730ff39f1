package wire

import "errors"

// Stream-absence errors. Only ErrStreamNotFound is recoverable-to-empty:
// the subscription core absorbs it as an empty read at the current position
// and keeps running (see IsRecoverableToEmpty). ErrStreamDeleted is terminal.
var (
	// ErrStreamNotFound means the addressed stream has never been written
	// to. The core treats it exactly like ReadCompleted{Events: nil, EndOfStream: true}.
	ErrStreamNotFound = errors.New("wire: stream not found")

	// ErrStreamDeleted means the addressed stream existed and was hard
	// deleted. Unlike ErrStreamNotFound, the subscription core does NOT
	// absorb this as empty: it is a terminal error for the subscription. A
	// metadata-read façade that distinguishes "never written" from "deleted"
	// ahead of time is out of scope for this module.
	ErrStreamDeleted = errors.New("wire: stream deleted")
)

// Terminal server errors: any of these (or any error not in the
// recoverable-to-empty set above) end the subscription with OnError.
var (
	ErrServerError      = errors.New("wire: internal server error")
	ErrNotAuthenticated = errors.New("wire: not authenticated")
	ErrAccessDenied     = errors.New("wire: access denied")
	ErrSubscriberLimit  = errors.New("wire: subscriber max count reached")
)

// IsRecoverableToEmpty reports whether err should be absorbed as an empty
// read rather than propagated to the consumer.
func IsRecoverableToEmpty(err error) bool {
	return errors.Is(err, ErrStreamNotFound)
}
