package core

import (
	"context"
	"encoding/json"
)

// DocumentStore is the persistent document interface backing canonical
// profiles. Implementations live under storage/ (memory, redis, postgres).
type DocumentStore interface {
	// Get returns the raw document, or found=false when none exists.
	Get(ctx context.Context, collection, id string) (json.RawMessage, bool, error)

	// Create writes doc only when no document exists for (collection, id).
	// It reports created=false, err=nil when a document was already present;
	// the existing document is left untouched.
	Create(ctx context.Context, collection, id string, doc any) (created bool, err error)

	// Update applies a shallow field patch to an existing document.
	Update(ctx context.Context, collection, id string, patch map[string]any) error

	Delete(ctx context.Context, collection, id string) error

	List(ctx context.Context, collection string) ([]json.RawMessage, error)
}
