package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/erp"
	"github.com/theauditor/loremshelf/internal/payment"
)

// MockRecords implements RecordClient for testing
type MockRecords struct {
	mu sync.Mutex

	CustomerErr error
	AddressErr  error
	OrderErr    error
	UpdateErr   error

	CustomerCalls int
	AddressCalls  int
	OrderCalls    int
	UpdateCalls   int

	LastOrder erp.SalesOrderRequest
	UpdatedID string
	LastProof *domain.PaymentProof
}

func (m *MockRecords) CreateCustomer(_ context.Context, _, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CustomerCalls++
	if m.CustomerErr != nil {
		return "", m.CustomerErr
	}
	return fmt.Sprintf("CUST-%05d", m.CustomerCalls), nil
}

func (m *MockRecords) CreateAddress(_ context.Context, customerID, _ string, _ domain.ShippingForm) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddressCalls++
	if m.AddressErr != nil {
		return "", m.AddressErr
	}
	return fmt.Sprintf("%s-Shipping-%d", customerID, m.AddressCalls), nil
}

func (m *MockRecords) CreateSalesOrder(_ context.Context, req erp.SalesOrderRequest) (*erp.SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderCalls++
	m.LastOrder = req
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	return &erp.SalesOrder{Name: fmt.Sprintf("SAL-ORD-2026-%05d", m.OrderCalls), DeliveryDate: "2026-11-01"}, nil
}

func (m *MockRecords) UpdateOrderPaymentStatus(_ context.Context, orderID string, proof *domain.PaymentProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	m.UpdatedID = orderID
	m.LastProof = proof
	return m.UpdateErr
}

// MockGateway opens fake sessions and resolves results the way Cashfree does
type MockGateway struct {
	mu sync.Mutex

	SessionErr   error
	SessionCalls int
	LastRequest  payment.SessionRequest
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionCalls++
	m.LastRequest = req
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	return &domain.PaymentSession{
		SessionID:      fmt.Sprintf("session_%d", m.SessionCalls),
		GatewayOrderID: fmt.Sprintf("gw_%d", m.SessionCalls),
	}, nil
}

func (m *MockGateway) Checkout(session domain.PaymentSession, _ payment.SessionRequest) payment.Handoff {
	return payment.Handoff{Gateway: "mock", Options: map[string]any{"paymentSessionId": session.SessionID}}
}

func (m *MockGateway) Resolve(raw json.RawMessage) (payment.Outcome, error) {
	return payment.NewCashfree(nil, "").Resolve(raw)
}

// MockLedger records what the checkout wrote
type MockLedger struct {
	mu         sync.Mutex
	External   []string
	Created    []string
	Paid       []string
	Reconciled []string
}

func (m *MockLedger) RecordExternal(_ context.Context, _, recordType, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.External = append(m.External, recordType+":"+externalID)
	return nil
}

func (m *MockLedger) RecordOrderCreated(_ context.Context, _ string, order domain.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, order.SalesOrderID)
	return nil
}

func (m *MockLedger) RecordPaid(_ context.Context, _ string, order domain.OrderRecord, _ domain.PaymentProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paid = append(m.Paid, order.SalesOrderID)
	return nil
}

func (m *MockLedger) MarkReconciled(_ context.Context, salesOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconciled = append(m.Reconciled, salesOrderID)
	return nil
}
