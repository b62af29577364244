package repository

import (
	"context"
	"sync"
)

// MemoryRepository keeps state in process memory. Used in tests and single-node dev runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]map[string][]byte // sessionID -> key -> value
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]map[string][]byte),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.entries[sessionID][key]
	if !ok {
		return nil, ErrStateNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (r *MemoryRepository) Put(ctx context.Context, sessionID, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.entries[sessionID]
	if !ok {
		session = make(map[string][]byte)
		r.entries[sessionID] = session
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	session[key] = stored
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.entries[sessionID]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(session, key)
	}
	if len(session) == 0 {
		delete(r.entries, sessionID)
	}
	return nil
}
