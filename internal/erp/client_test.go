package erp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theauditor/loremshelf/domain"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

type mockRecorder struct {
	mu    sync.Mutex
	calls []string
	kinds []domain.ErrorKind
}

func (m *mockRecorder) RecordExternalCall(_ context.Context, _, operation string, kind domain.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, operation)
	m.kinds = append(m.kinds, kind)
}

func setupERP(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]capturedRequest, *mockRecorder) {
	var mu sync.Mutex
	captured := &[]capturedRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := capturedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Auth: r.Header.Get("Authorization")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &c.Body)
		}
		mu.Lock()
		*captured = append(*captured, c)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	rec := &mockRecorder{}
	client := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "key", APISecret: "secret"}, rec, nil)
	client.now = func() time.Time { return time.Date(2026, 3, 20, 18, 30, 0, 0, time.UTC) }
	return client, captured, rec
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

var testForm = domain.ShippingForm{
	Email: "asha@example.com", FirstName: "Asha", LastName: "Rao",
	Address: "12 MG Road", Landmark: "Near Metro", City: "Bengaluru",
	State: "Karnataka", Pincode: "560001", Phone: "9876543210",
}

func TestCreateCustomer(t *testing.T) {
	client, captured, rec := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"name":"CUST-00042"}}`)
	})

	id, err := client.CreateCustomer(context.Background(), "Asha Rao", "9876543210", "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "CUST-00042", id)

	req := (*captured)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/resource/Customer", req.Path)
	assert.Equal(t, "token key:secret", req.Auth)
	assert.Equal(t, "Asha Rao", req.Body["customer_name"])
	assert.Equal(t, "Individual", req.Body["customer_type"])
	assert.Equal(t, "All Customer Groups", req.Body["customer_group"])
	assert.Equal(t, "All Territories", req.Body["territory"])
	assert.Equal(t, "9876543210", req.Body["mobile_no"])
	assert.Equal(t, []string{"create_customer"}, rec.calls)
	assert.Equal(t, domain.ErrorKind(""), rec.kinds[0])
}

func TestCreateCustomer_DuplicatePassthrough(t *testing.T) {
	client, _, rec := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 409, `{"exception":"frappe.exceptions.DuplicateEntryError: Customer X exists"}`)
	})

	_, err := client.CreateCustomer(context.Background(), "X", "9876543210", "x@example.com")

	var extErr *domain.ExternalError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, domain.ErrorKindDuplicate, extErr.Kind)
	assert.Equal(t, "Customer X exists", extErr.UserMessage)
	assert.Equal(t, domain.ErrorKindDuplicate, rec.kinds[0])
}

func TestCreateAddress(t *testing.T) {
	client, captured, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"name":"Asha Rao-Shipping"}}`)
	})

	id, err := client.CreateAddress(context.Background(), "CUST-00042", "Asha Rao", testForm)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao-Shipping", id)

	req := (*captured)[0]
	assert.Equal(t, "/api/resource/Address", req.Path)
	assert.Equal(t, "Shipping", req.Body["address_type"])
	assert.Equal(t, "Near Metro", req.Body["address_line2"])
	links := req.Body["links"].([]any)
	require.Len(t, links, 1)
	assert.Equal(t, map[string]any{"link_doctype": "Customer", "link_name": "CUST-00042"}, links[0])
}

func TestCreateSalesOrder(t *testing.T) {
	client, captured, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"name":"SAL-ORD-2026-00007"}}`)
	})

	order, err := client.CreateSalesOrder(context.Background(), SalesOrderRequest{
		Customer: domain.CustomerRecord{CustomerName: "Asha Rao", CustomerID: "CUST-00042", AddressID: "ADDR-1"},
		Form:     testForm,
		Items: []domain.CartLine{
			{ID: "ITEM-0001", Title: "The Quiet Shelf", Price: 299, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "SAL-ORD-2026-00007", order.Name)
	assert.Equal(t, "2026-04-03", order.DeliveryDate)

	req := (*captured)[0]
	assert.Equal(t, "/api/resource/Sales Order", req.Path)
	assert.Equal(t, "Pending", req.Body["custom_payment_status"])
	assert.Equal(t, "SAL-ORD-.YYYY.-", req.Body["naming_series"])
	assert.Equal(t, "2026-04-03", req.Body["delivery_date"])
	assert.Equal(t, "ADDR-1", req.Body["shipping_address_name"])
	assert.Equal(t,
		"12 MG Road\nNear Metro\nBengaluru, Karnataka - 560001\nPhone: 9876543210\nEmail: asha@example.com",
		req.Body["address_display"])
	assert.Equal(t, "Asha Rao\n9876543210\nasha@example.com", req.Body["contact_display"])

	items := req.Body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "ITEM-0001", item["item_code"])
	assert.Equal(t, float64(2), item["qty"])
	assert.Equal(t, float64(299), item["rate"])
	assert.Equal(t, "2026-04-03", item["delivery_date"])
}

func TestFormatAddress_WithoutLandmark(t *testing.T) {
	form := testForm
	form.Landmark = ""
	assert.Equal(t,
		"12 MG Road\nBengaluru, Karnataka - 560001\nPhone: 9876543210\nEmail: asha@example.com",
		FormatAddress(form))
}

func TestUpdateOrderPaymentStatus(t *testing.T) {
	client, captured, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{"name":"SAL-ORD-2026-00007"}}`)
	})

	proof := &domain.PaymentProof{
		Gateway:   "cashfree",
		SessionID: "session_abc",
		Response:  json.RawMessage(`{"order":{"status":"PAID"}}`),
		Amount:    598,
		Currency:  "INR",
	}
	require.NoError(t, client.UpdateOrderPaymentStatus(context.Background(), "SAL-ORD-2026-00007", proof))

	req := (*captured)[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/resource/Sales Order/SAL-ORD-2026-00007", req.Path)
	assert.Equal(t, "Paid", req.Body["custom_payment_status"])

	var stored domain.PaymentProof
	require.NoError(t, json.Unmarshal([]byte(req.Body["custom_payment_details"].(string)), &stored))
	assert.JSONEq(t, `{"order":{"status":"PAID"}}`, string(stored.Response))
	assert.Equal(t, "session_abc", stored.SessionID)
}

func TestCreatePaymentSession(t *testing.T) {
	client, captured, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"message":{"payment_session_id":"session_abc","cf_order_id":4455667}}`)
	})

	session, err := client.CreatePaymentSession(context.Background(), PaymentSessionRequest{
		OrderID: "SAL-ORD-2026-00007",
		Amount:  598,
		Contact: domain.Contact{Name: "Asha Rao", Email: "asha@example.com", Phone: "9876543210"},
	})
	require.NoError(t, err)
	assert.Equal(t, "session_abc", session.SessionID)
	assert.Equal(t, "4455667", session.GatewayOrderID)

	req := (*captured)[0]
	assert.Equal(t, "/api/method/payment_session", req.Path)
	assert.Equal(t, "SAL-ORD-2026-00007", req.Body["order_id"])
	assert.Equal(t, float64(598), req.Body["amount"])
}

func TestCreate_MissingNameIsAnError(t *testing.T) {
	client, _, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":{}}`)
	})
	ctx := context.Background()

	calls := map[string]func() error{
		"customer": func() error {
			_, err := client.CreateCustomer(ctx, "Asha Rao", "9876543210", "asha@example.com")
			return err
		},
		"address": func() error {
			_, err := client.CreateAddress(ctx, "CUST-00042", "Asha Rao", testForm)
			return err
		},
		"sales order": func() error {
			_, err := client.CreateSalesOrder(ctx, SalesOrderRequest{
				Customer: domain.CustomerRecord{CustomerName: "Asha Rao", CustomerID: "CUST-00042", AddressID: "ADDR-1"},
				Form:     testForm,
			})
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			var extErr *domain.ExternalError
			require.ErrorAs(t, call(), &extErr)
			assert.Equal(t, domain.ErrorKindServer, extErr.Kind)
			assert.Contains(t, extErr.TechnicalMessage, "data.name")
		})
	}
}

func TestCreatePaymentSession_MissingSessionID(t *testing.T) {
	client, _, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"message":{}}`)
	})

	_, err := client.CreatePaymentSession(context.Background(), PaymentSessionRequest{OrderID: "SO-1", Amount: 1})
	var extErr *domain.ExternalError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, domain.ErrorKindServer, extErr.Kind)
}

func TestListItems_BatchedInFilter(t *testing.T) {
	client, captured, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"data":[{"name":"ITEM-0001","custom_slug":"quiet-shelf","custom_front_cover":"/files/a.jpg"}]}`)
	})

	items, err := client.ListItems(context.Background(), ItemQuery{
		Filters: []Filter{Eq("item_group", "Lorem Paperback Book"), In("name", []string{"ITEM-0001", "ITEM-0002"})},
		Fields:  []string{"name", "custom_slug", "custom_front_cover"},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "/files/a.jpg", *items[0].CustomFrontCover)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, "/api/resource/Item", req.Path)
	assert.Contains(t, req.Query, "filters=")

	var filters [][]any
	values := mustParseQuery(t, req.Query)
	require.NoError(t, json.Unmarshal([]byte(values.Get("filters")), &filters))
	assert.Equal(t, []any{"name", "in", []any{"ITEM-0001", "ITEM-0002"}}, filters[1])
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	_, err := client.CreateCustomer(context.Background(), "A", "1", "a@b.c")

	var extErr *domain.ExternalError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, domain.ErrorKindNetwork, extErr.Kind)
	assert.Equal(t, "Network error occurred", extErr.UserMessage)
	assert.NotEmpty(t, extErr.TechnicalMessage)
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	client, _, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 417, `{"exception":"frappe.exceptions.ValidationError: bad"}`)
	})

	for i := 0; i < 10; i++ {
		_, err := client.CreateCustomer(context.Background(), "A", "1", "a@b.c")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())
}

func TestBreaker_ServerErrorsTrip(t *testing.T) {
	client, captured, _ := setupERP(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, `{"message":"down"}`)
	})

	for i := 0; i < 5; i++ {
		_, err := client.CreateCustomer(context.Background(), "A", "1", "a@b.c")
		var extErr *domain.ExternalError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, "down", extErr.UserMessage)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err := client.CreateCustomer(context.Background(), "A", "1", "a@b.c")
	var extErr *domain.ExternalError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, domain.ErrorKindNetwork, extErr.Kind)
	assert.Len(t, *captured, 5, "open breaker must not reach the ERP")
}
