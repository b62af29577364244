// Package checkout drives a session from cart to confirmation: step
// transitions and their effects, order submission against the ERP and the
// payment gateway, and post-payment reconciliation.
package checkout

import (
	"context"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/cart"
	"github.com/theauditor/loremshelf/internal/state"
)

func (s *Service) View(ctx context.Context, sessionID string) (*View, error) {
	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.buildView(sessionID, sess, s.cart.Get(ctx, sessionID)), nil
}

func (s *Service) AddItem(ctx context.Context, sessionID string, item domain.CartLine) (*View, error) {
	return s.mutateCart(ctx, sessionID, cart.AddItem(item))
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, id string) (*View, error) {
	return s.mutateCart(ctx, sessionID, cart.RemoveItem(id))
}

// UpdateQuantity sets the line quantity; zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, id string, quantity int) (*View, error) {
	return s.mutateCart(ctx, sessionID, cart.UpdateQuantity(id, quantity))
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) (*View, error) {
	return s.mutateCart(ctx, sessionID, cart.ClearCart())
}

// mutateCart applies the action and sends the session back to cart when the
// cart ends up empty on shipping or payment. Confirmation keeps its step.
func (s *Service) mutateCart(ctx context.Context, sessionID string, action cart.Action) (*View, error) {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	next, err := s.cart.Apply(ctx, sessionID, action)
	if err != nil {
		return nil, err
	}

	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var effects []domain.Effect
	if next.IsEmpty() && sess.Step != domain.CheckoutStepCart && !sess.Step.IsTerminal() {
		s.logger.InfoContext(ctx, "cart is empty, resetting to cart step", "session_id", sessionID, "step", sess.Step)
		if effects, err = s.moveTo(ctx, sessionID, &sess, domain.CheckoutStepCart); err != nil {
			return nil, err
		}
	}
	return s.buildView(sessionID, sess, next, effects...), nil
}

// SaveShippingForm stores the draft as typed. Validation happens on advancing.
func (s *Service) SaveShippingForm(ctx context.Context, sessionID string, form domain.ShippingForm) (*View, error) {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Form = form
	if sessionID != "" {
		if err := s.state.Save(ctx, sessionID, state.KeyForm, form); err != nil {
			return nil, err
		}
	}
	return s.buildView(sessionID, sess, s.cart.Get(ctx, sessionID)), nil
}

// SetStep performs a user-initiated transition. Confirmation can only be
// reached through CompletePayment.
func (s *Service) SetStep(ctx context.Context, sessionID string, to domain.CheckoutStep) (*View, error) {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cartState := s.cart.Get(ctx, sessionID)

	from := sess.Step
	if from == to {
		return s.buildView(sessionID, sess, cartState), nil
	}
	if to == domain.CheckoutStepConfirmation || !domain.CanTransitionTo(from, to) {
		return nil, illegalTransition(from, to)
	}
	if from == domain.CheckoutStepPayment && s.latch.Held(sessionID) {
		return nil, ErrSubmissionInProgress
	}
	if (to == domain.CheckoutStepShipping || to == domain.CheckoutStepPayment) && cartState.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if to == domain.CheckoutStepPayment {
		if verr := s.ValidateShippingForm(sess.Form); verr != nil {
			s.logger.InfoContext(ctx, "shipping form rejected", "session_id", sessionID, "error", verr)
			return nil, verr
		}
		sess.Form = sess.Form.Trimmed()
		if sessionID != "" {
			if err := s.state.Save(ctx, sessionID, state.KeyForm, sess.Form); err != nil {
				return nil, err
			}
		}
	}

	effects, err := s.moveTo(ctx, sessionID, &sess, to)
	if err != nil {
		return nil, err
	}
	return s.buildView(sessionID, sess, cartState, effects...), nil
}

// NavigateBack handles browser back on the payment step. Declining, or going
// back while a submission is in flight, keeps the user on payment.
func (s *Service) NavigateBack(ctx context.Context, sessionID string, confirm bool) (*View, error) {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cartState := s.cart.Get(ctx, sessionID)

	if sess.Step != domain.CheckoutStepPayment {
		return nil, illegalTransition(sess.Step, domain.CheckoutStepShipping)
	}
	if !confirm || s.latch.Held(sessionID) {
		return s.buildView(sessionID, sess, cartState, domain.EffectRestoreForwardHistory), nil
	}

	effects, err := s.moveTo(ctx, sessionID, &sess, domain.CheckoutStepShipping)
	if err != nil {
		return nil, err
	}
	return s.buildView(sessionID, sess, cartState, effects...), nil
}
