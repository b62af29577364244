package checkout

import (
	"context"
	"encoding/json"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/payment"
	"github.com/theauditor/loremshelf/internal/state"
)

type PaymentResult struct {
	Status  payment.OutcomeStatus `json:"status"`
	Message string                `json:"message,omitempty"`
	View    *View                 `json:"view"`
	// Reconciled is false when the order is still Pending in the ERP.
	Reconciled bool `json:"reconciled"`
}

// CompletePayment applies the outcome reported by the gateway's client SDK.
// Failed and dismissed outcomes keep the session on payment for a retry. A
// paid outcome stores the proof, enters confirmation and runs the reconciler.
func (s *Service) CompletePayment(ctx context.Context, sessionID string, raw json.RawMessage) (*PaymentResult, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	unlock := s.locker.Lock(sessionID)
	defer unlock()

	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Order == nil {
		return nil, ErrNoPendingOrder
	}
	if sess.Step != domain.CheckoutStepPayment {
		return nil, illegalTransition(sess.Step, domain.CheckoutStepConfirmation)
	}
	cartState := s.cart.Get(ctx, sessionID)

	outcome, err := s.gateway.Resolve(raw)
	if err != nil {
		s.latch.Release(sessionID)
		return nil, err
	}
	s.metrics.PaymentOutcome(ctx, s.gateway.Name(), string(outcome.Status))

	switch outcome.Status {
	case payment.OutcomeFailed, payment.OutcomeDismissed:
		s.latch.Release(sessionID)
		s.logger.InfoContext(ctx, "payment not completed",
			"session_id", sessionID,
			"sales_order_id", sess.Order.SalesOrderID,
			"outcome", outcome.Status,
			"message", outcome.Message)
		return &PaymentResult{
			Status:  outcome.Status,
			Message: outcome.Message,
			View:    s.buildView(sessionID, sess, cartState),
		}, nil
	}

	form := sess.Form.Trimmed()
	proof := domain.PaymentProof{
		Gateway:        sess.Order.Gateway,
		SessionID:      sess.Order.PaymentSession.SessionID,
		GatewayOrderID: sess.Order.PaymentSession.GatewayOrderID,
		PaymentID:      outcome.PaymentID,
		Response:       outcome.Response,
		Amount:         sess.Order.Amount,
		Currency:       sess.Order.Currency,
		Customer:       domain.Contact{Name: form.FullName(), Email: form.Email, Phone: form.Phone},
		CompletedAt:    s.now().UTC(),
	}
	if err := s.state.Save(ctx, sessionID, state.KeyPayment, proof); err != nil {
		return nil, err
	}
	sess.Payment = &proof

	effects, err := s.moveTo(ctx, sessionID, &sess, domain.CheckoutStepConfirmation)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.RecordPaid(ctx, sessionID, *sess.Order, proof); err != nil {
		s.logger.WarnContext(ctx, "ledger write failed", "session_id", sessionID, "sales_order_id", sess.Order.SalesOrderID, "error", err)
	}
	s.logger.InfoContext(ctx, "payment completed",
		"session_id", sessionID,
		"sales_order_id", sess.Order.SalesOrderID,
		"payment_id", proof.PaymentID)

	// the confirmation screen is rendered from this snapshot; a successful
	// reconciliation clears the stored session
	view := s.buildView(sessionID, sess, cartState, effects...)
	recon := s.reconciler.run(ctx, sessionID, sess)

	return &PaymentResult{
		Status:     payment.OutcomePaid,
		View:       view,
		Reconciled: recon.Reconciled,
	}, nil
}

// RetryReconciliation runs the reconciler again for a session left on
// confirmation with the order still Pending in the ERP.
func (s *Service) RetryReconciliation(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	unlock := s.locker.Lock(sessionID)
	defer unlock()

	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step != domain.CheckoutStepConfirmation || sess.Order == nil || sess.Payment == nil {
		return nil, ErrNothingToReconcile
	}
	return s.reconciler.retry(ctx, sessionID, sess)
}
