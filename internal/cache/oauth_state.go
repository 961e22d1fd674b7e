package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// OAuthStateStore remembers the state values handed to the OAuth provider
// until the callback consumes them.
type OAuthStateStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewOAuthStateStore(client *redisv9.Client, ttl time.Duration) *OAuthStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OAuthStateStore{client: client, ttl: ttl}
}

func (s *OAuthStateStore) Save(ctx context.Context, state string) error {
	if err := s.client.Set(ctx, s.key(state), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save oauth state failed: %w", err)
	}
	return nil
}

// Consume deletes the state and reports whether it existed. A state can be
// consumed once.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(state)).Result()
	if err != nil {
		return false, fmt.Errorf("redis consume oauth state failed: %w", err)
	}
	return n > 0, nil
}

func (s *OAuthStateStore) key(state string) string {
	return "oauth:state:" + state
}
