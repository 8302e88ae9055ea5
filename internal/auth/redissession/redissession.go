// Package redissession answers the only auth question the engine asks: is
// there a live session behind this token? Sessions are written by the
// external auth service; this store only reads them.
package redissession

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

type Store struct {
	c *redis.Client
}

func New(addr string) *Store {
	return &Store{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

func (s *Store) Authenticated(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := s.c.Exists(ctx, keyPrefix+token).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis session lookup")
	}
	return n > 0, nil
}
