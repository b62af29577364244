// Package payment holds the hosted-checkout gateways the storefront can hand
// a customer to. Each gateway opens a session for an order and interprets the
// result its client SDK reports back.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/theauditor/loremshelf/domain"
)

type OutcomeStatus string

const (
	OutcomePaid      OutcomeStatus = "paid"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeDismissed OutcomeStatus = "dismissed"
)

type Outcome struct {
	Status    OutcomeStatus
	PaymentID string
	// Message is the gateway's failure description, empty otherwise.
	Message  string
	Response json.RawMessage
}

type SessionRequest struct {
	OrderID  string
	Amount   int64
	Customer domain.CustomerRecord
	Contact  domain.Contact
	Items    []domain.CartLine
}

// Handoff carries what the client SDK needs to open the hosted checkout.
type Handoff struct {
	Gateway string         `json:"gateway"`
	Options map[string]any `json:"options"`
}

type Gateway interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (*domain.PaymentSession, error)
	Checkout(session domain.PaymentSession, req SessionRequest) Handoff
	Resolve(raw json.RawMessage) (Outcome, error)
}

var ErrMalformedResult = errors.New("malformed gateway result")

func decodeResult(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: null result", ErrMalformedResult)
	}
	return fields, nil
}

func present(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	return ok && string(v) != "null" && string(v) != "false"
}

// errorDescription pulls a human message out of {error: {...}} or {error: "..."}.
func errorDescription(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Description != "" {
			return obj.Description
		}
		return obj.Message
	}
	return ""
}
