// Package redis implements store.Store using Redis for high-throughput
// deployments. The pending queue is a List (RPUSH/LPOP gives FIFO), job
// records and history snapshots are Hashes, and every state transition
// runs as a single server-side Lua script so no two transitions can
// interleave on the same job.
//
// The claim script derives job hash keys from the ids it pops off the
// pending list, so those keys are not declared in KEYS. The store
// therefore targets a standalone Redis server; running it against a
// cluster would need every "execq:" key forced into one slot with a
// hash-tagged prefix ("{execq}:") so the script and the keys it touches
// route to the same node.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/execq/execq/history"
	"github.com/execq/execq/job"
)

// Compile-time interface checks.
var (
	_ job.Store     = (*Store)(nil)
	_ history.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
