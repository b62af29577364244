package checkout

import (
	"context"
	"fmt"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/state"
)

// View is the checkout state handed to the render layer.
type View struct {
	Step         domain.CheckoutStep    `json:"step"`
	Cart         domain.CartState       `json:"cart"`
	ItemCount    int                    `json:"itemCount"`
	Subtotal     int64                  `json:"subtotal"`
	ShippingCost int64                  `json:"shippingCost"`
	Total        int64                  `json:"total"`
	Form         domain.ShippingForm    `json:"form"`
	Customer     *domain.CustomerRecord `json:"customer,omitempty"`
	Order        *domain.OrderRecord    `json:"order,omitempty"`
	Payment      *domain.PaymentProof   `json:"payment,omitempty"`
	Submitting   bool                   `json:"submitting"`
	Effects      []domain.Effect        `json:"effects,omitempty"`
}

// shipping is free for every order
const shippingCost = 0

func (s *Service) buildView(sessionID string, sess domain.CheckoutSession, cart domain.CartState, effects ...domain.Effect) *View {
	return &View{
		Step:         sess.Step,
		Cart:         cart,
		ItemCount:    cart.ItemCount(),
		Subtotal:     cart.Total,
		ShippingCost: shippingCost,
		Total:        cart.Total + shippingCost,
		Form:         sess.Form,
		Customer:     sess.Customer,
		Order:        sess.Order,
		Payment:      sess.Payment,
		Submitting:   sessionID != "" && s.latch.Held(sessionID),
		Effects:      effects,
	}
}

// LoadSession reads every persisted checkout entry. A missing or unknown step
// is cart. Without a session nothing is read.
func (s *Service) LoadSession(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	sess := domain.CheckoutSession{Step: domain.CheckoutStepCart}
	if sessionID == "" {
		return sess, nil
	}

	var step string
	if _, err := s.state.Load(ctx, sessionID, state.KeyStep, &step); err != nil {
		return sess, fmt.Errorf("load checkout step: %w", err)
	}
	if parsed, ok := domain.ParseCheckoutStep(step); ok {
		sess.Step = parsed
	}

	if _, err := s.state.Load(ctx, sessionID, state.KeyForm, &sess.Form); err != nil {
		return sess, fmt.Errorf("load shipping form: %w", err)
	}

	var customer domain.CustomerRecord
	found, err := s.state.Load(ctx, sessionID, state.KeyCustomer, &customer)
	if err != nil {
		return sess, fmt.Errorf("load customer checkpoint: %w", err)
	}
	if found && customer.Complete() {
		sess.Customer = &customer
	}

	var order domain.OrderRecord
	found, err = s.state.Load(ctx, sessionID, state.KeyOrder, &order)
	if err != nil {
		return sess, fmt.Errorf("load order: %w", err)
	}
	if found {
		sess.Order = &order
	}

	var proof domain.PaymentProof
	found, err = s.state.Load(ctx, sessionID, state.KeyPayment, &proof)
	if err != nil {
		return sess, fmt.Errorf("load payment proof: %w", err)
	}
	if found {
		sess.Payment = &proof
	}
	return sess, nil
}

// SaveSession writes every entry of the session. Absent records are removed.
func (s *Service) SaveSession(ctx context.Context, sessionID string, sess domain.CheckoutSession) error {
	if sessionID == "" {
		return nil
	}
	if err := s.state.Save(ctx, sessionID, state.KeyStep, sess.Step); err != nil {
		return fmt.Errorf("save checkout step: %w", err)
	}
	if err := s.state.Save(ctx, sessionID, state.KeyForm, sess.Form); err != nil {
		return fmt.Errorf("save shipping form: %w", err)
	}

	entries := []struct {
		key   string
		value any
		set   bool
	}{
		{state.KeyCustomer, sess.Customer, sess.Customer != nil},
		{state.KeyOrder, sess.Order, sess.Order != nil},
		{state.KeyPayment, sess.Payment, sess.Payment != nil},
	}
	for _, e := range entries {
		var err error
		if e.set {
			err = s.state.Save(ctx, sessionID, e.key, e.value)
		} else {
			err = s.state.Clear(ctx, sessionID, e.key)
		}
		if err != nil {
			return fmt.Errorf("save %s: %w", e.key, err)
		}
	}
	return nil
}

func (s *Service) saveStep(ctx context.Context, sessionID string, step domain.CheckoutStep) error {
	if sessionID == "" {
		return nil
	}
	if err := s.state.Save(ctx, sessionID, state.KeyStep, step); err != nil {
		return fmt.Errorf("save checkout step: %w", err)
	}
	return nil
}

// moveTo persists the step and returns the exit and enter effects of the move.
func (s *Service) moveTo(ctx context.Context, sessionID string, sess *domain.CheckoutSession, to domain.CheckoutStep) ([]domain.Effect, error) {
	from := sess.Step
	if err := s.saveStep(ctx, sessionID, to); err != nil {
		return nil, err
	}
	sess.Step = to

	var effects []domain.Effect
	switch from {
	case domain.CheckoutStepPayment:
		s.latch.Release(sessionID)
		effects = append(effects, domain.EffectReleaseHistory)
	case domain.CheckoutStepConfirmation:
		s.reconciler.reset(sessionID)
	}

	switch to {
	case domain.CheckoutStepPayment:
		effects = append(effects, domain.EffectGuardHistory)
	case domain.CheckoutStepConfirmation:
		effects = append(effects, domain.EffectReconcileOrder, domain.EffectRemoveGatewayOverlay, domain.EffectScrollToTop)
	}
	s.logger.InfoContext(ctx, "checkout step changed", "session_id", sessionID, "from", from, "to", to)
	return effects, nil
}
