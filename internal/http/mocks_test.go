package http

import (
	"context"
	"encoding/json"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/catalog"
	"github.com/theauditor/loremshelf/internal/checkout"
)

// CheckoutMock records the session id of the last call and returns the
// configured view or error.
type CheckoutMock struct {
	view   *checkout.View
	err    error
	submit *checkout.SubmitResult
	paid   *checkout.PaymentResult
	recon  *checkout.ReconcileResult

	sessionID string
	added     domain.CartLine
	quantity  int
	itemID    string
	form      domain.ShippingForm
	step      domain.CheckoutStep
	confirm   bool
	raw       json.RawMessage
}

func (m *CheckoutMock) result(sessionID string) (*checkout.View, error) {
	m.sessionID = sessionID
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func (m *CheckoutMock) View(_ context.Context, sessionID string) (*checkout.View, error) {
	return m.result(sessionID)
}

func (m *CheckoutMock) AddItem(_ context.Context, sessionID string, item domain.CartLine) (*checkout.View, error) {
	m.added = item
	return m.result(sessionID)
}

func (m *CheckoutMock) RemoveItem(_ context.Context, sessionID, id string) (*checkout.View, error) {
	m.itemID = id
	return m.result(sessionID)
}

func (m *CheckoutMock) UpdateQuantity(_ context.Context, sessionID, id string, quantity int) (*checkout.View, error) {
	m.itemID = id
	m.quantity = quantity
	return m.result(sessionID)
}

func (m *CheckoutMock) ClearCart(_ context.Context, sessionID string) (*checkout.View, error) {
	return m.result(sessionID)
}

func (m *CheckoutMock) SaveShippingForm(_ context.Context, sessionID string, form domain.ShippingForm) (*checkout.View, error) {
	m.form = form
	return m.result(sessionID)
}

func (m *CheckoutMock) SetStep(_ context.Context, sessionID string, to domain.CheckoutStep) (*checkout.View, error) {
	m.step = to
	return m.result(sessionID)
}

func (m *CheckoutMock) NavigateBack(_ context.Context, sessionID string, confirm bool) (*checkout.View, error) {
	m.confirm = confirm
	return m.result(sessionID)
}

func (m *CheckoutMock) SubmitOrder(_ context.Context, sessionID string) (*checkout.SubmitResult, error) {
	m.sessionID = sessionID
	if m.err != nil {
		return nil, m.err
	}
	return m.submit, nil
}

func (m *CheckoutMock) CompletePayment(_ context.Context, sessionID string, raw json.RawMessage) (*checkout.PaymentResult, error) {
	m.sessionID = sessionID
	m.raw = raw
	if m.err != nil {
		return nil, m.err
	}
	return m.paid, nil
}

func (m *CheckoutMock) RetryReconciliation(_ context.Context, sessionID string) (*checkout.ReconcileResult, error) {
	m.sessionID = sessionID
	if m.err != nil {
		return nil, m.err
	}
	return m.recon, nil
}

type CatalogMock struct {
	books    []catalog.Book
	book     *catalog.Book
	err      error
	covers   map[string]string
	coverIDs []string
}

func (m *CatalogMock) ListBooks(context.Context) ([]catalog.Book, error) {
	return m.books, m.err
}

func (m *CatalogMock) BookBySlug(context.Context, string) (*catalog.Book, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.book, nil
}

func (m *CatalogMock) Covers(_ context.Context, ids []string) map[string]string {
	m.coverIDs = ids
	return m.covers
}
