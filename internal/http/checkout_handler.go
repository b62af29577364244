package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/checkout"
)

type CheckoutService interface {
	View(ctx context.Context, sessionID string) (*checkout.View, error)
	AddItem(ctx context.Context, sessionID string, item domain.CartLine) (*checkout.View, error)
	RemoveItem(ctx context.Context, sessionID, id string) (*checkout.View, error)
	UpdateQuantity(ctx context.Context, sessionID, id string, quantity int) (*checkout.View, error)
	ClearCart(ctx context.Context, sessionID string) (*checkout.View, error)
	SaveShippingForm(ctx context.Context, sessionID string, form domain.ShippingForm) (*checkout.View, error)
	SetStep(ctx context.Context, sessionID string, to domain.CheckoutStep) (*checkout.View, error)
	NavigateBack(ctx context.Context, sessionID string, confirm bool) (*checkout.View, error)
	SubmitOrder(ctx context.Context, sessionID string) (*checkout.SubmitResult, error)
	CompletePayment(ctx context.Context, sessionID string, raw json.RawMessage) (*checkout.PaymentResult, error)
	RetryReconciliation(ctx context.Context, sessionID string) (*checkout.ReconcileResult, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
}

func NewCheckoutHandler(checkout CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type StepRequestDTO struct {
	Step string `json:"step"`
}

type BackRequestDTO struct {
	Confirm bool `json:"confirm"`
}

func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.View(r.Context(), getSessionID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// SaveShipping stores the form draft without validating it.
func (h *CheckoutHandler) SaveShipping(w http.ResponseWriter, r *http.Request) {
	var form domain.ShippingForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	view, err := h.checkout.SaveShippingForm(r.Context(), getSessionID(r.Context()), form)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CheckoutHandler) SetStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	step, ok := domain.ParseCheckoutStep(req.Step)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_step", "step must be one of cart, shipping, payment, confirmation")
		return
	}

	view, err := h.checkout.SetStep(r.Context(), getSessionID(r.Context()), step)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// NavigateBack handles browser back on payment. Confirm carries the
// customer's answer to the leave-payment prompt.
func (h *CheckoutHandler) NavigateBack(w http.ResponseWriter, r *http.Request) {
	var req BackRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	view, err := h.checkout.NavigateBack(r.Context(), getSessionID(r.Context()), req.Confirm)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CheckoutHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.SubmitOrder(r.Context(), getSessionID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// CompletePayment takes the gateway client's result object verbatim.
func (h *CheckoutHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := h.checkout.CompletePayment(r.Context(), getSessionID(r.Context()), raw)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *CheckoutHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.RetryReconciliation(r.Context(), getSessionID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	status := http.StatusOK
	if !result.Reconciled {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}
