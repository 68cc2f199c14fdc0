package auth

import "errors"

var (
	// ErrNotFound means no configured source yielded a credential payload.
	// Expected before the first authorization handshake completes.
	ErrNotFound = errors.New("auth: credential not found in any source")

	// ErrUnavailable means no currently usable credential could be
	// produced. Callers treat it as "skip this cycle", never as fatal.
	ErrUnavailable = errors.New("auth: credential unavailable")

	// ErrInvalidGrant means the authority rejected the grant (revoked or
	// expired refresh token, spent authorization code). Requires the user
	// to re-authorize; never retried automatically.
	ErrInvalidGrant = errors.New("auth: invalid grant")

	// ErrUnreachable is a transient transport or server failure talking to
	// the authority. Safe to retry on the next scheduled cycle.
	ErrUnreachable = errors.New("auth: authority unreachable")
)
