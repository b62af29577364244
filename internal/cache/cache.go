package cache

import (
	"context"
	"errors"
)

type StateCache interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID string, keys ...string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NoopCache never hits. Used when no Redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopCache) Set(context.Context, string, string, []byte) error { return nil }

func (NoopCache) Delete(context.Context, string, ...string) error { return nil }
