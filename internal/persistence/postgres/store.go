// Package postgres stores dashboard blob entries in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/learnlog/internal/persistence"
)

const schema = `CREATE TABLE IF NOT EXISTS dashboard_blobs (
    name TEXT PRIMARY KEY,
    payload JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a persistence.BlobStore backed by the dashboard_blobs table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the blob table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create dashboard_blobs: %w", err)
	}
	return nil
}

// Get implements persistence.BlobStore.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	const query = `SELECT payload FROM dashboard_blobs WHERE name=$1`

	var payload []byte
	if err := s.pool.QueryRow(ctx, query, name).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// Put implements persistence.BlobStore. All entries are upserted in one transaction.
func (s *Store) Put(ctx context.Context, entries ...persistence.Entry) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO dashboard_blobs (name, payload, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	for _, entry := range entries {
		if _, err = tx.Exec(ctx, stmt, entry.Name, entry.Payload); err != nil {
			return fmt.Errorf("upsert %s: %w", entry.Name, err)
		}
	}
	return tx.Commit(ctx)
}
