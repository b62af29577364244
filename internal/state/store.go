// Package state is the durable per-session key-value storage used by the cart
// and the checkout flow. Reads go through the cache, writes go to the
// repository and invalidate the cache.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/theauditor/loremshelf/internal/cache"
	"github.com/theauditor/loremshelf/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	KeyCart     = "loremshelf_cart"
	KeyForm     = "loremshelf_form_data"
	KeyStep     = "loremshelf_checkout_step"
	KeyCustomer = "loremshelf_customer_data"
	KeyOrder    = "loremshelf_order"
	KeyPayment  = "loremshelf_payment"
)

// CheckoutKeys are cleared together once an order is reconciled.
var CheckoutKeys = []string{KeyCart, KeyForm, KeyStep, KeyCustomer, KeyOrder, KeyPayment}

var ErrCorruptEntry = errors.New("stored state is not valid JSON")

// generationStripes shards the write generations. Keys sharing a stripe only
// cost each other a skipped cache fill.
const generationStripes = 64

type generation struct {
	mu sync.Mutex
	n  uint64
}

type Store struct {
	repo   repository.StateRepository
	cache  cache.StateCache
	sfg    singleflight.Group
	gens   [generationStripes]generation
	logger *slog.Logger
}

func NewStore(repo repository.StateRepository, c cache.StateCache, logger *slog.Logger) *Store {
	if c == nil {
		c = cache.NoopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:   repo,
		cache:  c,
		logger: logger.With("component", "state"),
	}
}

// Load decodes the entry into dst. It reports false when the entry does not exist.
func (s *Store) Load(ctx context.Context, sessionID, key string, dst any) (bool, error) {
	raw, err := s.raw(ctx, sessionID, key)
	if errors.Is(err, repository.ErrStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	return true, nil
}

func (s *Store) raw(ctx context.Context, sessionID, key string) ([]byte, error) {
	v, err, _ := s.sfg.Do(sessionID+"\x00"+key, func() (interface{}, error) {
		data, err := s.cache.Get(ctx, sessionID, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cache get error", "key", key, "error", err)
		}

		gen := s.generation(sessionID, key)
		seen := gen.current()

		data, err = s.repo.Get(ctx, sessionID, key)
		if err != nil {
			return nil, err
		}

		s.fill(ctx, gen, seen, sessionID, key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Store) Save(ctx context.Context, sessionID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := s.repo.Put(ctx, sessionID, key, data); err != nil {
		return err
	}
	s.bump(sessionID, key)
	s.invalidate(sessionID, key)
	return nil
}

// Clear removes the keys from durable storage and the cache.
func (s *Store) Clear(ctx context.Context, sessionID string, keys ...string) error {
	if err := s.repo.Delete(ctx, sessionID, keys...); err != nil {
		return err
	}
	s.bump(sessionID, keys...)
	s.invalidate(sessionID, keys...)
	return nil
}

func (s *Store) generation(sessionID, key string) *generation {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return &s.gens[h.Sum32()%generationStripes]
}

func (g *generation) current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// bump must run after the repository write and before the cache
// invalidation. Later loads start a fresh read instead of joining one that
// began before the write.
func (s *Store) bump(sessionID string, keys ...string) {
	for _, key := range keys {
		g := s.generation(sessionID, key)
		g.mu.Lock()
		g.n++
		g.mu.Unlock()
		s.sfg.Forget(sessionID + "\x00" + key)
	}
}

// fill caches a value read from the repository unless a write to the same
// stripe happened since the read started.
func (s *Store) fill(ctx context.Context, g *generation, seen uint64, sessionID, key string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n != seen {
		return
	}
	if err := s.cache.Set(ctx, sessionID, key, data); err != nil {
		s.logger.WarnContext(ctx, "cache set error", "key", key, "error", err)
	}
}

func (s *Store) invalidate(sessionID string, keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID, keys...); err != nil {
		s.logger.Warn("cache invalidate error", "keys", keys, "error", err)
	}
}
