package checkout

import (
	"context"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/erp"
	"github.com/theauditor/loremshelf/internal/payment"
	"github.com/theauditor/loremshelf/internal/state"
)

type SubmitResult struct {
	Order   domain.OrderRecord `json:"order"`
	Handoff payment.Handoff    `json:"handoff"`
	Report  SubmissionReport   `json:"report"`
}

// SubmitOrder runs Place Order up to the gateway handoff. The customer and
// address are created at most once per session; every attempt creates a new
// sales order and payment session. The submission latch stays held until
// CompletePayment reports the gateway outcome.
func (s *Service) SubmitOrder(ctx context.Context, sessionID string) (*SubmitResult, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if !s.latch.Acquire(sessionID) {
		return nil, ErrSubmissionInProgress
	}

	handedOff := false
	defer func() {
		if !handedOff {
			s.latch.Release(sessionID)
		}
	}()

	unlock := s.locker.Lock(sessionID)
	defer unlock()

	sess, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step != domain.CheckoutStepPayment {
		return nil, illegalTransition(sess.Step, domain.CheckoutStepConfirmation)
	}
	cartState := s.cart.Get(ctx, sessionID)
	if cartState.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if verr := s.ValidateShippingForm(sess.Form); verr != nil {
		return nil, verr
	}
	form := sess.Form.Trimmed()

	var report SubmissionReport
	customer := sess.Customer
	if customer.Complete() {
		s.logger.InfoContext(ctx, "reusing customer checkpoint", "session_id", sessionID, "customer_id", customer.CustomerID, "address_id", customer.AddressID)
		report.Customer = StepResult{Success: true, ID: customer.CustomerID, Reused: true}
		report.Address = StepResult{Success: true, ID: customer.AddressID, Reused: true}
	} else {
		customer, err = s.createCustomer(ctx, sessionID, form, &report)
		if err != nil {
			return nil, err
		}
	}

	amount := cartState.Total + shippingCost
	salesOrder, err := s.records.CreateSalesOrder(ctx, erp.SalesOrderRequest{
		Customer: *customer,
		Form:     form,
		Items:    cartState.Items,
	})
	if err != nil {
		report.Order = ptr(failed(err))
		return nil, s.abort(ctx, sessionID, StageOrder, report, err)
	}
	report.Order = ptr(succeeded(salesOrder.Name))
	s.recordExternal(ctx, sessionID, RecordSalesOrder, salesOrder.Name)

	contact := domain.Contact{Name: customer.CustomerName, Email: form.Email, Phone: form.Phone}
	sessionReq := payment.SessionRequest{
		OrderID:  salesOrder.Name,
		Amount:   amount,
		Customer: *customer,
		Contact:  contact,
		Items:    cartState.Items,
	}
	paySession, err := s.gateway.CreateSession(ctx, sessionReq)
	if err != nil {
		report.PaymentSession = ptr(failed(err))
		return nil, s.abort(ctx, sessionID, StagePaymentSession, report, err)
	}
	report.PaymentSession = ptr(succeeded(paySession.SessionID))
	s.recordExternal(ctx, sessionID, RecordPaymentSession, paySession.SessionID)

	order := domain.OrderRecord{
		SalesOrderID:   salesOrder.Name,
		DeliveryDate:   salesOrder.DeliveryDate,
		Amount:         amount,
		Currency:       domain.CurrencyINR,
		Gateway:        s.gateway.Name(),
		PaymentSession: *paySession,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.state.Save(ctx, sessionID, state.KeyOrder, order); err != nil {
		return nil, err
	}
	if err := s.ledger.RecordOrderCreated(ctx, sessionID, order); err != nil {
		s.logger.WarnContext(ctx, "ledger write failed", "session_id", sessionID, "sales_order_id", order.SalesOrderID, "error", err)
	}

	s.metrics.SubmissionFinished(ctx, "handoff", true)
	s.logger.InfoContext(ctx, "order handed off to gateway",
		"session_id", sessionID,
		"sales_order_id", order.SalesOrderID,
		"gateway", order.Gateway,
		"amount", order.Amount)

	handedOff = true
	return &SubmitResult{
		Order:   order,
		Handoff: s.gateway.Checkout(*paySession, sessionReq),
		Report:  report,
	}, nil
}

// createCustomer creates the customer and its address, then writes the
// checkpoint. Nothing is saved when either call fails.
func (s *Service) createCustomer(ctx context.Context, sessionID string, form domain.ShippingForm, report *SubmissionReport) (*domain.CustomerRecord, error) {
	name := form.FullName()

	customerID, err := s.records.CreateCustomer(ctx, name, form.Phone, form.Email)
	if err != nil {
		report.Customer = failed(err)
		report.Address = skippedAddress()
		return nil, s.abort(ctx, sessionID, StageCustomer, *report, err)
	}
	report.Customer = succeeded(customerID)
	s.recordExternal(ctx, sessionID, RecordCustomer, customerID)

	addressID, err := s.records.CreateAddress(ctx, customerID, name, form)
	if err != nil {
		report.Address = failed(err)
		return nil, s.abort(ctx, sessionID, StageAddress, *report, err)
	}
	report.Address = succeeded(addressID)
	s.recordExternal(ctx, sessionID, RecordAddress, addressID)

	customer := &domain.CustomerRecord{CustomerName: name, CustomerID: customerID, AddressID: addressID}
	if err := s.state.Save(ctx, sessionID, state.KeyCustomer, customer); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "customer checkpoint saved", "session_id", sessionID, "customer_id", customerID, "address_id", addressID)
	return customer, nil
}

func (s *Service) abort(ctx context.Context, sessionID string, stage Stage, report SubmissionReport, err error) error {
	s.metrics.SubmissionFinished(ctx, string(stage), false)
	s.logger.ErrorContext(ctx, "order submission failed", "session_id", sessionID, "stage", stage, "error", err)
	return &SubmissionError{Stage: stage, Report: report, Err: err}
}

func (s *Service) recordExternal(ctx context.Context, sessionID, recordType, externalID string) {
	if err := s.ledger.RecordExternal(ctx, sessionID, recordType, externalID); err != nil {
		s.logger.WarnContext(ctx, "ledger write failed", "session_id", sessionID, "record_type", recordType, "external_id", externalID, "error", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
