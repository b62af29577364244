package repository

import (
	"context"
	"errors"
)

var ErrStateNotFound = errors.New("state entry not found")

// StateRepository stores opaque JSON values per (session, key).
// Every key is read and written independently.
type StateRepository interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Put(ctx context.Context, sessionID, key string, value []byte) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, sessionID string, keys ...string) error
}
