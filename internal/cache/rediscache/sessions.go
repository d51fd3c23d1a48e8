package rediscache

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SessionStore reads checkout-session values the storefront writes during
// checkout (pickup-point selections). Read-only on our side.
type SessionStore struct {
	c *redis.Client
}

func NewSessionStore(addr string) *SessionStore {
	return &SessionStore{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func sessionKey(sessionID, key string) string {
	return fmt.Sprintf("checkout:%s:%s", sessionID, key)
}

func (s *SessionStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	val, err := s.c.Get(ctx, sessionKey(sessionID, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis session get")
	}
	return val, true, nil
}
