package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/theauditor/loremshelf/domain"
)

const (
	deliveryOffsetDays   = 14
	salesOrderSeries     = "SAL-ORD-.YYYY.-"
	PaymentStatusPending = "Pending"
	PaymentStatusPaid    = "Paid"
)

type createResult struct {
	Data struct {
		Name string `json:"name"`
	} `json:"data"`
}

// name returns the created document name. A success response without one is
// treated as a failed create.
func (r createResult) name(doctype string) (string, error) {
	if r.Data.Name == "" {
		return "", &domain.ExternalError{
			Kind:             domain.ErrorKindServer,
			UserMessage:      unexpectedErrorMessage,
			TechnicalMessage: doctype + " response has no data.name",
		}
	}
	return r.Data.Name, nil
}

// CreateCustomer creates an Individual customer. Each call creates a new record.
func (c *Client) CreateCustomer(ctx context.Context, name, phone, email string) (string, error) {
	payload := map[string]any{
		"customer_name":  name,
		"customer_type":  "Individual",
		"customer_group": "All Customer Groups",
		"territory":      "All Territories",
		"mobile_no":      phone,
		"email_id":       email,
	}

	var result createResult
	if err := c.do(ctx, "create_customer", http.MethodPost, resourcePath("Customer"), nil, payload, &result); err != nil {
		return "", err
	}
	return result.name("Customer")
}

// CreateAddress creates a shipping address linked to the customer. Each call creates a new record.
func (c *Client) CreateAddress(ctx context.Context, customerID, customerName string, form domain.ShippingForm) (string, error) {
	payload := map[string]any{
		"address_title": customerName,
		"address_type":  "Shipping",
		"address_line1": form.Address,
		"address_line2": form.Landmark,
		"city":          form.City,
		"state":         form.State,
		"pincode":       form.Pincode,
		"phone":         form.Phone,
		"email_id":      form.Email,
		"links": []map[string]string{
			{"link_doctype": "Customer", "link_name": customerID},
		},
	}

	var result createResult
	if err := c.do(ctx, "create_address", http.MethodPost, resourcePath("Address"), nil, payload, &result); err != nil {
		return "", err
	}
	return result.name("Address")
}

type SalesOrderRequest struct {
	Customer domain.CustomerRecord
	Form     domain.ShippingForm
	Items    []domain.CartLine
}

type SalesOrder struct {
	Name         string
	DeliveryDate string
}

// CreateSalesOrder creates a Pending order delivering 14 days after today.
func (c *Client) CreateSalesOrder(ctx context.Context, req SalesOrderRequest) (*SalesOrder, error) {
	deliveryDate := c.now().UTC().AddDate(0, 0, deliveryOffsetDays).Format("2006-01-02")

	items := make([]map[string]any, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, map[string]any{
			"item_code":     item.ID,
			"item_name":     item.Title,
			"qty":           item.Quantity,
			"rate":          item.Price,
			"delivery_date": deliveryDate,
		})
	}

	address := FormatAddress(req.Form)
	payload := map[string]any{
		"customer":              req.Customer.CustomerID,
		"customer_name":         req.Customer.CustomerName,
		"customer_address":      req.Customer.AddressID,
		"shipping_address_name": req.Customer.AddressID,
		"address_display":       address,
		"shipping_address":      address,
		"contact_display":       FormatContact(req.Customer.CustomerName, req.Form),
		"contact_email":         req.Form.Email,
		"contact_mobile":        req.Form.Phone,
		"delivery_date":         deliveryDate,
		"items":                 items,
		"custom_payment_status": PaymentStatusPending,
		"naming_series":         salesOrderSeries,
	}

	var result createResult
	if err := c.do(ctx, "create_sales_order", http.MethodPost, resourcePath("Sales Order"), nil, payload, &result); err != nil {
		return nil, err
	}
	name, err := result.name("Sales Order")
	if err != nil {
		return nil, err
	}
	return &SalesOrder{Name: name, DeliveryDate: deliveryDate}, nil
}

// UpdateOrderPaymentStatus marks the order Paid and stores the proof verbatim.
func (c *Client) UpdateOrderPaymentStatus(ctx context.Context, orderID string, proof *domain.PaymentProof) error {
	details, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("marshal payment proof: %w", err)
	}

	payload := map[string]any{
		"custom_payment_status":  PaymentStatusPaid,
		"custom_payment_details": string(details),
	}
	if proof.PaymentID != "" {
		payload["custom_payment_id"] = proof.PaymentID
	}

	return c.do(ctx, "update_payment_status", http.MethodPut, resourcePath("Sales Order", orderID), nil, payload, nil)
}

type PaymentSessionRequest struct {
	OrderID string
	Amount  int64
	Contact domain.Contact
}

// CreatePaymentSession asks the ERP payment_session method to open a gateway session for the order.
func (c *Client) CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*domain.PaymentSession, error) {
	payload := map[string]any{
		"order_id":       req.OrderID,
		"amount":         req.Amount,
		"currency":       domain.CurrencyINR,
		"customer_name":  req.Contact.Name,
		"customer_email": req.Contact.Email,
		"customer_phone": req.Contact.Phone,
	}

	var result struct {
		Message struct {
			PaymentSessionID string     `json:"payment_session_id"`
			CFOrderID        flexString `json:"cf_order_id"`
		} `json:"message"`
	}
	if err := c.do(ctx, "create_payment_session", http.MethodPost, "/api/method/payment_session", nil, payload, &result); err != nil {
		return nil, err
	}
	if result.Message.PaymentSessionID == "" {
		return nil, &domain.ExternalError{
			Kind:             domain.ErrorKindServer,
			UserMessage:      unexpectedErrorMessage,
			TechnicalMessage: "payment_session response has no payment_session_id",
		}
	}
	return &domain.PaymentSession{
		SessionID:      result.Message.PaymentSessionID,
		GatewayOrderID: string(result.Message.CFOrderID),
	}, nil
}

// FormatAddress renders the human-readable address block stored on the order.
func FormatAddress(f domain.ShippingForm) string {
	var b strings.Builder
	b.WriteString(f.Address)
	b.WriteString("\n")
	if f.Landmark != "" {
		b.WriteString(f.Landmark)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s, %s - %s\nPhone: %s\nEmail: %s", f.City, f.State, f.Pincode, f.Phone, f.Email)
	return b.String()
}

func FormatContact(name string, f domain.ShippingForm) string {
	return fmt.Sprintf("%s\n%s\n%s", name, f.Phone, f.Email)
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
