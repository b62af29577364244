package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/state"
)

type Store struct {
	state  *state.Store
	logger *slog.Logger
}

func NewStore(st *state.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:  st,
		logger: logger.With("component", "cart"),
	}
}

func emptyCart() domain.CartState {
	return domain.CartState{Items: []domain.CartLine{}}
}

// Get loads the cart of a session for display. A request without a session,
// a missing entry and an unreadable entry all yield an empty cart.
func (s *Store) Get(ctx context.Context, sessionID string) domain.CartState {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load cart from storage", "session_id", sessionID, "error", err)
		return emptyCart()
	}
	return cart
}

// load is Get without the fallback: only a missing or corrupt entry reads
// as empty, any other storage error is returned.
func (s *Store) load(ctx context.Context, sessionID string) (domain.CartState, error) {
	if sessionID == "" {
		return emptyCart(), nil
	}

	var stored domain.CartState
	found, err := s.state.Load(ctx, sessionID, state.KeyCart, &stored)
	if errors.Is(err, state.ErrCorruptEntry) {
		s.logger.WarnContext(ctx, "discarding unreadable cart", "session_id", sessionID, "error", err)
		return emptyCart(), nil
	}
	if err != nil {
		return domain.CartState{}, err
	}
	if !found {
		return emptyCart(), nil
	}
	// total is always recomputed from the lines
	return Reduce(emptyCart(), LoadCart(stored.Items)), nil
}

// Apply reduces the action against the stored cart and persists the result.
// Nothing is written when the stored cart cannot be read.
// The caller must hold the session lock.
func (s *Store) Apply(ctx context.Context, sessionID string, action Action) (domain.CartState, error) {
	current, err := s.load(ctx, sessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load cart from storage", "session_id", sessionID, "error", err)
		return domain.CartState{}, fmt.Errorf("load cart: %w", err)
	}
	next := Reduce(current, action)
	if sessionID == "" {
		return next, nil
	}
	if err := s.state.Save(ctx, sessionID, state.KeyCart, next); err != nil {
		s.logger.ErrorContext(ctx, "failed to save cart to storage", "session_id", sessionID, "error", err)
		return next, err
	}
	return next, nil
}
