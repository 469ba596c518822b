package core

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/openlearn/sessionkit/metrics"
)

const (
	keyOAuthState   = "extauth:state"
	keyBridgeRecord = "extauth:bridge"

	// DefaultStateTTL bounds the lifetime of an outstanding CSRF state
	// record. A callback arriving after expiry finds no stored token and is
	// rejected even if its state value would have matched.
	DefaultStateTTL = 10 * time.Minute

	// DefaultBridgeTTL bounds how long a bridge record may wait for its
	// consumer after the upstream redirect leg wrote it.
	DefaultBridgeTTL = 5 * time.Minute
)

// BridgeRecord hands an externally authenticated identity across the
// full-page redirect boundary, where no in-page listener can observe the
// sign-in directly. It is single-consumption: reading it deletes it.
type BridgeRecord struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Provider  string `json:"provider"`
}

// sessionProfile synthesizes a session-only profile from the record.
// The external-provider path never materializes a persisted profile; any
// canonical record for these identities is owned upstream.
func (r BridgeRecord) sessionProfile(now time.Time) Profile {
	return Profile{
		ID:        r.SubjectID,
		Email:     r.Email,
		Name:      r.Name,
		AvatarURL: r.AvatarURL,
		Provider:  r.Provider,
		Role:      DefaultRole,
		CreatedAt: now.UTC(),
	}
}

type stateRecord struct {
	Token      string `json:"token"`
	ReturnPath string `json:"return_path"`
}

// PutBridgeRecord stores rec for single consumption by the callback leg or
// the session listener. It is called by the upstream redirect target after
// the external provider authenticated the user.
func PutBridgeRecord(ctx context.Context, store EphemeralStore, rec BridgeRecord) error {
	return ephemSetJSON(ctx, store, keyBridgeRecord, rec, DefaultBridgeTTL)
}

// consumeBridgeRecord reads and immediately deletes the bridge record, so a
// second read observes absence.
func consumeBridgeRecord(ctx context.Context, store EphemeralStore) (BridgeRecord, bool, error) {
	var rec BridgeRecord
	ok, err := ephemGetJSON(ctx, store, keyBridgeRecord, &rec)
	if err != nil || !ok {
		return BridgeRecord{}, false, err
	}
	if err := store.Del(ctx, keyBridgeRecord); err != nil {
		return BridgeRecord{}, false, fmt.Errorf("consume bridge record: %w", err)
	}
	return rec, true, nil
}

// ExternalOAuthBridge drives the external provider's redirect-based sign-in:
// CSRF state issuance on the way out, state verification and bridge-record
// consumption on the way back.
type ExternalOAuthBridge struct {
	oauth     oauth2.Config
	ephemeral EphemeralStore
	store     *Store
	stateTTL  time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// Initiate issues a CSRF token, durably stores it with the caller's return
// path, and returns the provider authorization URL carrying the token as the
// state parameter. The caller performs the actual navigation; control does
// not come back in-process.
func (b *ExternalOAuthBridge) Initiate(ctx context.Context, returnPath string) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	if returnPath == "" {
		returnPath = "/"
	}
	if err := ephemSetJSON(ctx, b.ephemeral, keyOAuthState, stateRecord{Token: token, ReturnPath: returnPath}, b.stateTTL); err != nil {
		return "", fmt.Errorf("persist oauth state: %w", err)
	}
	return b.oauth.AuthCodeURL(token), nil
}

// CompleteFromCallback finishes the return leg. The received state must equal
// the stored token byte-for-byte before any trust is extended to the rest of
// the callback; on mismatch the flow aborts without authenticating and
// without consuming any bridge record.
//
// With a verified state: an absent bridge record publishes Unauthenticated
// (the user may have cancelled upstream — a benign outcome, not an error);
// a present record is consumed and published as an authenticated session.
// Returns the return path captured at initiation.
func (b *ExternalOAuthBridge) CompleteFromCallback(ctx context.Context, receivedState string) (string, error) {
	var sr stateRecord
	ok, err := ephemGetJSON(ctx, b.ephemeral, keyOAuthState, &sr)
	if err != nil {
		b.store.publish(Failed("external sign-in state unavailable"))
		return "", fmt.Errorf("load oauth state: %w", err)
	}
	if !ok {
		metrics.StateRejections.Inc()
		b.log.Warn("oauth callback without pending state")
		return "", ErrNoPendingState
	}
	if receivedState != sr.Token {
		metrics.StateRejections.Inc()
		b.log.Warn("oauth state mismatch", zap.Int("received_len", len(receivedState)))
		return "", ErrStateMismatch
	}
	if err := b.ephemeral.Del(ctx, keyOAuthState); err != nil {
		b.store.publish(Failed("external sign-in state unavailable"))
		return "", fmt.Errorf("clear oauth state: %w", err)
	}

	rec, ok, err := consumeBridgeRecord(ctx, b.ephemeral)
	if err != nil {
		b.store.publish(Failed("external sign-in record unavailable"))
		return "", err
	}
	if !ok {
		b.store.publish(Unauthenticated())
		return sr.ReturnPath, nil
	}

	b.store.publish(Authenticated(rec.sessionProfile(b.now())))
	metrics.SignIns.WithLabelValues(rec.Provider).Inc()
	b.log.Info("external sign-in completed", zap.String("provider", rec.Provider))
	return sr.ReturnPath, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base58.Encode(buf), nil
}
