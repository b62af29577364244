package payment

import (
	"context"
	"encoding/json"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/erp"
)

const GatewayCashfree = "cashfree"

// SessionCreator is the ERP method that opens a Cashfree order server side.
type SessionCreator interface {
	CreatePaymentSession(ctx context.Context, req erp.PaymentSessionRequest) (*domain.PaymentSession, error)
}

type Cashfree struct {
	sessions  SessionCreator
	returnURL string
}

func NewCashfree(sessions SessionCreator, returnURL string) *Cashfree {
	return &Cashfree{sessions: sessions, returnURL: returnURL}
}

func (c *Cashfree) Name() string { return GatewayCashfree }

func (c *Cashfree) CreateSession(ctx context.Context, req SessionRequest) (*domain.PaymentSession, error) {
	return c.sessions.CreatePaymentSession(ctx, erp.PaymentSessionRequest{
		OrderID: req.OrderID,
		Amount:  req.Amount,
		Contact: req.Contact,
	})
}

func (c *Cashfree) Checkout(session domain.PaymentSession, _ SessionRequest) Handoff {
	return Handoff{
		Gateway: GatewayCashfree,
		Options: map[string]any{
			"paymentSessionId": session.SessionID,
			"returnUrl":        c.returnURL,
			"redirectTarget":   "_modal",
		},
	}
}

// Resolve interprets the checkout() promise result: {} is a completed
// payment, {error} a failure and {redirect} a checkout that left the modal
// without reporting completion.
func (c *Cashfree) Resolve(raw json.RawMessage) (Outcome, error) {
	fields, err := decodeResult(raw)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case present(fields, "error"):
		return Outcome{Status: OutcomeFailed, Message: errorDescription(fields["error"]), Response: raw}, nil
	case present(fields, "redirect"), present(fields, "dismissed"):
		return Outcome{Status: OutcomeDismissed, Response: raw}, nil
	default:
		return Outcome{Status: OutcomePaid, Response: raw}, nil
	}
}
