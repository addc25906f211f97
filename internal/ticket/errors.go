package ticket

import "errors"

var (
	// ErrExpired covers both an elapsed TTL and an id that never existed;
	// the store cannot tell them apart and neither should callers.
	ErrExpired = errors.New("ticket invalid or expired")

	// ErrAlreadyConfirmed rejects a second confirmation, whether a replay
	// or a lost race between two scans.
	ErrAlreadyConfirmed = errors.New("ticket already confirmed")

	// ErrNotReady means consume was attempted before any confirmation.
	ErrNotReady = errors.New("ticket not yet confirmed")

	// ErrAlreadyConsumed rejects a second consumption of the redirect.
	ErrAlreadyConsumed = errors.New("ticket already consumed")

	// ErrStoreUnavailable wraps transient storage faults. It is the only
	// error worth retrying; the store itself never retries.
	ErrStoreUnavailable = errors.New("ticket store unavailable")
)
