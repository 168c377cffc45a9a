package remote

import "errors"

var (
	// ErrRemoteUnavailable covers network-level failures and remote 5xx
	// responses. Recoverable: the mutation falls back to the sync queue.
	ErrRemoteUnavailable = errors.New("remote backend unavailable")

	// ErrRemoteTimeout is a bounded-wait expiry. Treated identically to
	// a network failure by callers.
	ErrRemoteTimeout = errors.New("remote call timed out")

	// ErrRemoteRejected is a remote validation failure (4xx). The payload
	// is presumably invalid, so retries are capped rather than unbounded.
	ErrRemoteRejected = errors.New("remote backend rejected request")
)
