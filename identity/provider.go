package identity

import "context"

// ChangeEvent is delivered to subscribers whenever the provider's notion of
// the signed-in identity changes.
//
// Assertion is nil when no identity is signed in. Err carries a
// subscription-level failure; the subscription itself stays active after an
// errored event.
type ChangeEvent struct {
	Assertion *Assertion
	Err       error
}

// PopupOutcome is the explicit result variant of an embedded popup sign-in.
type PopupOutcome string

const (
	PopupOK        PopupOutcome = "ok"
	PopupBlocked   PopupOutcome = "blocked"
	PopupCancelled PopupOutcome = "cancelled"
	PopupFailed    PopupOutcome = "failed"
)

// PopupResult carries the outcome of a popup sign-in attempt. Callers are
// expected to switch on Outcome exhaustively; Blocked and Cancelled are
// recoverable by falling back to the redirect flow of the same provider.
type PopupResult struct {
	Outcome   PopupOutcome
	Assertion *Assertion
	Err       error
}

// Provider is the native identity-provider surface consumed by the session
// core. Implementations are black boxes: popup/redirect mechanics, token
// handling and credential storage live behind this interface.
type Provider interface {
	// Subscribe registers onChange for identity change notifications and
	// returns a cancel func releasing the subscription. Implementations
	// deliver an initial event reflecting the current identity (or its
	// absence) so a fresh subscriber can leave its loading state.
	Subscribe(ctx context.Context, onChange func(ChangeEvent)) (cancel func(), err error)

	// ResolveRedirectResult checks once for a completed redirect sign-in.
	// It returns (nil, nil) when no redirect result is pending.
	ResolveRedirectResult(ctx context.Context) (*Assertion, error)

	// PopupSignIn runs the embedded popup flow and reports its outcome as an
	// explicit variant rather than provider-specific error codes.
	PopupSignIn(ctx context.Context) PopupResult

	// RedirectSignIn starts the full-page redirect flow. The resulting
	// identity is observed later via Subscribe or ResolveRedirectResult.
	RedirectSignIn(ctx context.Context) error

	SignOut(ctx context.Context) error

	EmailPasswordSignIn(ctx context.Context, email, password string) error
	EmailPasswordSignUp(ctx context.Context, email, password string) error
}
