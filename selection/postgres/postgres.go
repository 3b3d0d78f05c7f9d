// Package postgres provides a PostgreSQL-backed SelectionStore for llmstream.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/llmstream"
)

// Store is a PostgreSQL-backed SelectionStore.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
	profile     string
}

var _ llmstream.SelectionStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "llmstream_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// WithProfile scopes the selection (default "default").
func WithProfile(profile string) Option {
	return func(s *Store) { s.profile = profile }
}

// New creates a new PostgreSQL-backed SelectionStore.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "llmstream_",
		profile:     "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) table() string { return s.tablePrefix + "selections" }

// EnsureSchema creates the required table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			profile TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`, s.table())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("llmstream/postgres: ensure schema: %w", err)
	}
	return nil
}

// LoadActive returns the stored model id, or "" when nothing is stored.
func (s *Store) LoadActive(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT model_id FROM %s WHERE profile = $1`, s.table()),
		s.profile,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("llmstream/postgres: load: %w", err)
	}
	return id, nil
}

// SaveActive upserts the model id.
func (s *Store) SaveActive(ctx context.Context, modelID string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`
			INSERT INTO %s (profile, model_id, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (profile) DO UPDATE SET model_id = EXCLUDED.model_id, updated_at = now()`,
			s.table()),
		s.profile, modelID,
	)
	if err != nil {
		return fmt.Errorf("llmstream/postgres: save: %w", err)
	}
	return nil
}
