// Package redis provides a Redis-backed SelectionStore for llmstream.
//
// The active model id is kept in a hash per profile so that several editor
// instances (or restarts of one) share the same selection.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/llmstream"
)

// Store is a Redis-backed SelectionStore.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
	profile   string
	ttl       time.Duration
}

var _ llmstream.SelectionStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "llmstream:selection:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// WithProfile scopes the selection (default "default").
func WithProfile(profile string) Option {
	return func(s *Store) { s.profile = profile }
}

// WithTTL expires the selection after d of inactivity. Zero keeps it forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// New creates a new Redis-backed SelectionStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "llmstream:selection:",
		profile:   "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key() string {
	return s.keyPrefix + s.profile
}

// LoadActive returns the stored model id, or "" when nothing is stored.
func (s *Store) LoadActive(ctx context.Context) (string, error) {
	id, err := s.client.HGet(ctx, s.key(), "model").Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("llmstream/redis: load: %w", err)
	}
	return id, nil
}

// SaveActive stores the model id.
func (s *Store) SaveActive(ctx context.Context, modelID string) error {
	key := s.key()
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"model", modelID,
			"updated_at", time.Now().UTC().Unix(),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("llmstream/redis: save: %w", err)
	}
	return nil
}

// Clear removes the stored selection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("llmstream/redis: clear: %w", err)
	}
	return nil
}
