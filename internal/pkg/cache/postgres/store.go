// Package postgres implements a cache.Store shared by every instance that
// points at the same database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cofabri/site-backend/internal/pkg/cache"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements cache.Store on the cache_entries table.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new PostgreSQL cache store.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Load returns the entry for key, if any.
func (s *Store) Load(ctx context.Context, key string) (cache.Entry, bool, error) {
	query := `
		SELECT key, payload, fetched_at
		FROM cache_entries
		WHERE key = $1
	`

	var entry cache.Entry
	err := s.db.QueryRow(ctx, query, key).Scan(&entry.Key, &entry.Payload, &entry.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("load cache entry %s: %w", key, err)
	}
	return entry, true, nil
}

// Save upserts the entry. Older writes never overwrite newer ones.
func (s *Store) Save(ctx context.Context, entry cache.Entry) error {
	query := `
		INSERT INTO cache_entries (key, payload, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at
		WHERE cache_entries.fetched_at <= EXCLUDED.fetched_at
	`

	if _, err := s.db.Exec(ctx, query, entry.Key, entry.Payload, entry.FetchedAt); err != nil {
		return fmt.Errorf("save cache entry %s: %w", entry.Key, err)
	}
	return nil
}

// Purge removes every entry. Used in tests to reset shared state.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("purge cache entries: %w", err)
	}
	return nil
}
