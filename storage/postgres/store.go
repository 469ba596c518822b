package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a Postgres-backed document store. Conditional create maps to
// INSERT ... ON CONFLICT DO NOTHING, which makes concurrent materialization
// of the same profile safe at the database level.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the backing tables. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessionkit_documents (
    collection TEXT  NOT NULL,
    id         TEXT  NOT NULL,
    data       JSONB NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS sessionkit_ephemeral (
    key        TEXT  PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS sessionkit_ephemeral_expires_idx
    ON sessionkit_ephemeral (expires_at) WHERE expires_at IS NOT NULL;
`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply sessionkit schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM sessionkit_documents WHERE collection=$1 AND id=$2`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, doc any) (bool, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	ct, err := s.pool.Exec(ctx,
		`INSERT INTO sessionkit_documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, b)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	b, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE sessionkit_documents SET data = data || $3::jsonb
		 WHERE collection=$1 AND id=$2`,
		collection, id, b)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM sessionkit_documents WHERE collection=$1 AND id=$2`,
		collection, id)
	return err
}

func (s *Store) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM sessionkit_documents WHERE collection=$1 ORDER BY id`,
		collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

// KV is a Postgres-backed ephemeral store sharing the Store's pool. Postgres
// has no native TTL, so expired rows are filtered on read and swept by the
// riverjobs purge worker.
type KV struct {
	pool *pgxpool.Pool
}

func NewKV(pool *pgxpool.Pool) *KV {
	return &KV{pool: pool}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expires *time.Time
	err := k.pool.QueryRow(ctx,
		`SELECT value, expires_at FROM sessionkit_ephemeral WHERE key=$1`,
		key).Scan(&value, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expires != nil && time.Now().After(*expires) {
		_, _ = k.pool.Exec(ctx, `DELETE FROM sessionkit_ephemeral WHERE key=$1`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	_, err := k.pool.Exec(ctx,
		`INSERT INTO sessionkit_ephemeral (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expires)
	return err
}

func (k *KV) Del(ctx context.Context, key string) error {
	_, err := k.pool.Exec(ctx, `DELETE FROM sessionkit_ephemeral WHERE key=$1`, key)
	return err
}

// DeleteExpired removes up to limit rows past their deadline and reports how
// many went away. The riverjobs purge worker calls it in batches.
func (k *KV) DeleteExpired(ctx context.Context, limit int) (int64, error) {
	ct, err := k.pool.Exec(ctx,
		`DELETE FROM sessionkit_ephemeral WHERE key IN (
		    SELECT key FROM sessionkit_ephemeral
		    WHERE expires_at IS NOT NULL AND expires_at < now()
		    LIMIT $1
		 )`, limit)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
