package core

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Config wires the session core: one native identity provider, one external
// OAuth provider, and the two stores the flows write through.
type Config struct {
	// Documents persists canonical profiles.
	Documents DocumentStore

	// Ephemeral holds short-lived auth state (CSRF state records, bridge
	// records). Must survive the external provider's full-page navigation.
	Ephemeral EphemeralStore

	// ExternalOAuth describes the external redirect-only provider. Endpoint
	// AuthURL, ClientID and RedirectURL are required for the bridge; token
	// exchange happens upstream, so TokenURL and ClientSecret may be empty.
	ExternalOAuth oauth2.Config

	// StateTTL bounds outstanding CSRF state records. Default DefaultStateTTL.
	StateTTL time.Duration

	// ResolveTimeout bounds every awaited step inside the flows (provider
	// checks, store reads/writes). A step exceeding it surfaces as a Failed
	// state instead of leaving the session at Loading forever. Default 15s.
	ResolveTimeout time.Duration

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

const defaultResolveTimeout = 15 * time.Second

func (c *Config) withDefaults() {
	if c.StateTTL <= 0 {
		c.StateTTL = DefaultStateTTL
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = defaultResolveTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
