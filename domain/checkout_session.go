package domain

import (
	"encoding/json"
	"time"
)

const CurrencyINR = "INR"

// CustomerRecord is the checkpoint written once the ERP customer and address exist.
type CustomerRecord struct {
	CustomerName string `json:"customerName" bson:"customer_name"`
	CustomerID   string `json:"customerId" bson:"customer_id"`
	AddressID    string `json:"addressId" bson:"address_id"`
}

// Complete reports whether both external ids are present, the condition for reuse.
func (c *CustomerRecord) Complete() bool {
	return c != nil && c.CustomerID != "" && c.AddressID != ""
}

type PaymentSession struct {
	SessionID      string `json:"sessionId" bson:"session_id"`
	GatewayOrderID string `json:"gatewayOrderId" bson:"gateway_order_id"`
}

// OrderRecord is the sales order created for the current submission attempt.
type OrderRecord struct {
	SalesOrderID   string         `json:"salesOrderId" bson:"sales_order_id"`
	DeliveryDate   string         `json:"deliveryDate" bson:"delivery_date"`
	Amount         int64          `json:"amount" bson:"amount"`
	Currency       string         `json:"currency" bson:"currency"`
	Gateway        string         `json:"gateway" bson:"gateway"`
	PaymentSession PaymentSession `json:"paymentSession" bson:"payment_session"`
	CreatedAt      time.Time      `json:"createdAt" bson:"created_at"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PaymentProof is the gateway evidence recorded against the order once paid.
// Response holds the gateway's client result verbatim.
type PaymentProof struct {
	Gateway        string          `json:"gateway"`
	SessionID      string          `json:"session_id,omitempty"`
	GatewayOrderID string          `json:"gateway_order_id,omitempty"`
	PaymentID      string          `json:"payment_id,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	Customer       Contact         `json:"customer"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// CheckoutSession aggregates the persisted checkout state of one browser session.
type CheckoutSession struct {
	Step     CheckoutStep    `json:"step"`
	Form     ShippingForm    `json:"form"`
	Customer *CustomerRecord `json:"customer,omitempty"`
	Order    *OrderRecord    `json:"order,omitempty"`
	Payment  *PaymentProof   `json:"payment,omitempty"`
}
