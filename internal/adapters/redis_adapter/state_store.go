// internal/adapters/redis_adapter/state_store.go
package redis_a

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cyclosproject/searchd/internal/core/ports"
)

// StateStore persists per-screen UI state (filter form and result
// type) in redis, keyed by session and screen. Entries expire with the
// session TTL so abandoned sessions clean themselves up.
type StateStore struct {
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.StateStore = (*StateStore)(nil)

// NewStateStore creates a state store on top of the shared cache.
func NewStateStore(cache *Cache, ttl time.Duration, logger *slog.Logger) *StateStore {
	return &StateStore{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "state_store")),
	}
}

// Get loads the state stored under key into dest.
func (s *StateStore) Get(ctx context.Context, key string, dest any) error {
	err := s.cache.Get(ctx, BuildKey(PrefixScreen, key), dest)
	if errors.Is(err, ErrCacheMiss) {
		return ports.ErrStateMiss
	}
	return err
}

// Set stores the state under key, refreshing its expiry.
func (s *StateStore) Set(ctx context.Context, key string, value any) error {
	return s.cache.SetWithTTL(ctx, BuildKey(PrefixScreen, key), value, s.ttl)
}

// Delete removes the state stored under key.
func (s *StateStore) Delete(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, BuildKey(PrefixScreen, key))
}
