package memorystore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// DocStore is an in-memory document store with create-if-absent semantics,
// for development and tests.
type DocStore struct {
	mu          sync.Mutex
	collections map[string]map[string]json.RawMessage
}

func NewDocStore() *DocStore {
	return &DocStore{collections: make(map[string]map[string]json.RawMessage)}
}

func (d *DocStore) Get(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), raw...), true, nil
}

// Create writes doc only when no document exists for (collection, id).
func (d *DocStore) Create(ctx context.Context, collection, id string, doc any) (bool, error) {
	_ = ctx
	b, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	coll, ok := d.collections[collection]
	if !ok {
		coll = make(map[string]json.RawMessage)
		d.collections[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return false, nil
	}
	coll[id] = b
	return true, nil
}

func (d *DocStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.collections[collection][id]
	if !ok {
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	d.collections[collection][id] = b
	return nil
}

func (d *DocStore) Delete(ctx context.Context, collection, id string) error {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.collections[collection], id)
	return nil
}

func (d *DocStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	coll := d.collections[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, append(json.RawMessage(nil), coll[id]...))
	}
	return out, nil
}
