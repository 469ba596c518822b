package core

import (
	"context"
	"encoding/json"
	"time"
)

// EphemeralStore is a minimal key-value interface for short-lived auth state
// (OAuth state records, bridge records). Implementations should honor TTL on
// Set and treat missing keys as (found=false, err=nil).
//
// Unlike in-memory state, ephemeral storage survives the full-page navigation
// of the external OAuth flow, which is why the CSRF token and return path
// live here rather than in process memory.
type EphemeralStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

func ephemSetJSON(ctx context.Context, store EphemeralStore, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, b, ttl)
}

func ephemGetJSON(ctx context.Context, store EphemeralStore, key string, out any) (bool, error) {
	b, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(b, out)
}
