package core

import "errors"

var (
	// ErrStateMismatch is returned by the external OAuth callback when the
	// state parameter does not equal the stored CSRF token. The flow aborts
	// without authenticating and without consuming any bridge record.
	ErrStateMismatch = errors.New("sessionkit: oauth state mismatch")

	// ErrNoPendingState is returned when the callback arrives with no stored
	// CSRF token, e.g. after the state record expired or was never written.
	ErrNoPendingState = errors.New("sessionkit: no pending oauth state")
)
