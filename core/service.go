package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openlearn/sessionkit/identity"
)

// Service owns the session store and the three flows allowed to write it:
// the session listener, the one-shot redirect resolver, and the external
// OAuth bridge. Everything else reads the store through Sessions().
type Service struct {
	store    *Store
	provider identity.Provider
	listener *SessionListener
	resolver *RedirectResultResolver
	bridge   *ExternalOAuthBridge
	log      *zap.Logger
}

func NewService(provider identity.Provider, cfg Config) (*Service, error) {
	if provider == nil {
		return nil, errors.New("sessionkit: identity provider is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("sessionkit: document store is required")
	}
	if cfg.Ephemeral == nil {
		return nil, errors.New("sessionkit: ephemeral store is required")
	}
	cfg.withDefaults()

	store := NewStore()
	mat := NewMaterializer(cfg.Documents)
	now := time.Now

	s := &Service{
		store:    store,
		provider: provider,
		log:      cfg.Logger,
	}
	s.listener = &SessionListener{
		provider:     provider,
		ephemeral:    cfg.Ephemeral,
		materializer: mat,
		store:        store,
		timeout:      cfg.ResolveTimeout,
		now:          now,
		log:          cfg.Logger,
	}
	s.resolver = &RedirectResultResolver{
		provider:     provider,
		materializer: mat,
		store:        store,
		timeout:      cfg.ResolveTimeout,
		log:          cfg.Logger,
	}
	s.bridge = &ExternalOAuthBridge{
		oauth:     cfg.ExternalOAuth,
		ephemeral: cfg.Ephemeral,
		store:     store,
		stateTTL:  cfg.StateTTL,
		now:       now,
		log:       cfg.Logger,
	}
	return s, nil
}

// Start subscribes the listener and kicks off the one-shot redirect check.
// The two run concurrently; whichever resolves first ends the Loading phase.
func (s *Service) Start(ctx context.Context) error {
	// Subscribe before resolving so no change event can slip between the
	// redirect check and the subscription.
	if err := s.listener.Start(ctx); err != nil {
		return fmt.Errorf("subscribe to identity provider: %w", err)
	}
	go s.resolver.ResolveOnce(ctx)
	return nil
}

// Close releases the provider subscription. The store itself needs no
// teardown beyond its subscribers cancelling themselves.
func (s *Service) Close() {
	s.listener.Close()
}

// Sessions exposes the observable session state for guards and UI.
func (s *Service) Sessions() *Store { return s.store }

// Bridge exposes the external OAuth flow for the HTTP adapter.
func (s *Service) Bridge() *ExternalOAuthBridge { return s.bridge }

// PopupSignIn runs the native provider's embedded popup flow, falling back
// to the full redirect flow when the popup is blocked or dismissed. The
// resulting identity arrives through the change subscription, not here.
func (s *Service) PopupSignIn(ctx context.Context) error {
	res := s.provider.PopupSignIn(ctx)
	switch res.Outcome {
	case identity.PopupOK:
		return nil
	case identity.PopupBlocked, identity.PopupCancelled:
		s.log.Info("popup sign-in unavailable, falling back to redirect",
			zap.String("outcome", string(res.Outcome)))
		return s.provider.RedirectSignIn(ctx)
	case identity.PopupFailed:
		return res.Err
	default:
		return fmt.Errorf("sessionkit: unhandled popup outcome %q", res.Outcome)
	}
}

// RedirectSignIn starts the native provider's full-page redirect flow.
func (s *Service) RedirectSignIn(ctx context.Context) error {
	return s.provider.RedirectSignIn(ctx)
}

func (s *Service) SignOut(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

func (s *Service) EmailPasswordSignIn(ctx context.Context, email, password string) error {
	return s.provider.EmailPasswordSignIn(ctx, email, password)
}

func (s *Service) EmailPasswordSignUp(ctx context.Context, email, password string) error {
	return s.provider.EmailPasswordSignUp(ctx, email, password)
}
