package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DocStore persists documents as JSON strings under "doc:<collection>:<id>".
// Create relies on SETNX for the conditional-create guarantee.
type DocStore struct {
	rdb *redis.Client
}

func NewDocStore(rdb *redis.Client) *DocStore {
	return &DocStore{rdb: rdb}
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func (d *DocStore) Get(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	b, err := d.rdb.Get(ctx, docKey(collection, id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (d *DocStore) Create(ctx context.Context, collection, id string, doc any) (bool, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	return d.rdb.SetNX(ctx, docKey(collection, id), b, 0).Result()
}

// Update is read-modify-write without a transaction; it serves admin paths,
// not the concurrent materialization path (which only uses Get/Create).
func (d *DocStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	key := docKey(collection, id)
	b, err := d.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	if err != nil {
		return err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return d.rdb.Set(ctx, key, out, redis.KeepTTL).Err()
}

func (d *DocStore) Delete(ctx context.Context, collection, id string) error {
	return d.rdb.Del(ctx, docKey(collection, id)).Err()
}

func (d *DocStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	iter := d.rdb.Scan(ctx, 0, docKey(collection, "*"), 0).Iterator()
	for iter.Next(ctx) {
		b, err := d.rdb.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
