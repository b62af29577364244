package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const GatewayRazorpay = "razorpay"

type RazorpayConfig struct {
	BaseURL      string
	KeyID        string
	KeySecret    string
	MerchantName string
}

type Razorpay struct {
	cfg        RazorpayConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

func NewRazorpay(cfg RazorpayConfig, logger *slog.Logger) *Razorpay {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	logger = logger.With("component", "razorpay")

	breakerCfg := circuitbreaker.DefaultConfig("razorpay")
	breakerCfg.IsSuccessful = func(err error) bool {
		var extErr *domain.ExternalError
		if err == nil || errors.Is(err, errRazorpayServer) {
			return err == nil
		}
		return errors.As(err, &extErr) && extErr.Kind != domain.ErrorKindNetwork
	}

	return &Razorpay{
		cfg:        cfg,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker:    circuitbreaker.New[[]byte](breakerCfg, logger),
		logger:     logger,
	}
}

func (r *Razorpay) Name() string { return GatewayRazorpay }

func (r *Razorpay) BreakerState() gobreaker.State {
	return r.breaker.State()
}

// ToPaise converts whole rupees into the smallest currency unit.
func ToPaise(rupees int64) int64 {
	return decimal.NewFromInt(rupees).Mul(decimal.NewFromInt(100)).IntPart()
}

func formatRupees(rupees int64) string {
	return decimal.NewFromInt(rupees).StringFixed(2)
}

var errRazorpayServer = errors.New("razorpay server error")

// CreateSession opens a Razorpay order for the sales order amount.
func (r *Razorpay) CreateSession(ctx context.Context, req SessionRequest) (*domain.PaymentSession, error) {
	payload, err := json.Marshal(map[string]any{
		"amount":   ToPaise(req.Amount),
		"currency": domain.CurrencyINR,
		"receipt":  req.OrderID,
		"notes": map[string]string{
			"sales_order_id": req.OrderID,
			"customer_id":    req.Customer.CustomerID,
			"order_total":    formatRupees(req.Amount),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal razorpay order: %w", err)
	}

	body, err := r.breaker.Execute(func() ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/orders", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := r.httpClient.Do(httpReq)
		if err != nil {
			return nil, domain.NewNetworkError(err.Error())
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, domain.NewNetworkError(err.Error())
		}
		if resp.StatusCode >= 500 {
			return nil, errors.Join(errRazorpayServer, razorpayError(resp.StatusCode, data))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, razorpayError(resp.StatusCode, data)
		}
		return data, nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "razorpay order failed", "sales_order_id", req.OrderID, "error", err)
		if circuitbreaker.IsOpenError(err) {
			return nil, domain.NewNetworkError(fmt.Sprintf("circuit breaker razorpay: %v", err))
		}
		var extErr *domain.ExternalError
		if errors.As(err, &extErr) {
			return nil, extErr
		}
		return nil, err
	}

	var order struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &order); err != nil || order.ID == "" {
		return nil, &domain.ExternalError{
			Kind:             domain.ErrorKindServer,
			UserMessage:      "An unexpected error occurred",
			TechnicalMessage: string(body),
		}
	}
	return &domain.PaymentSession{SessionID: order.ID, GatewayOrderID: order.ID}, nil
}

// razorpayError keeps Razorpay's own description as the user message.
func razorpayError(status int, body []byte) *domain.ExternalError {
	var parsed struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &parsed)

	kind := domain.ErrorKindServer
	switch {
	case status == http.StatusUnauthorized:
		kind = domain.ErrorKindAuthentication
	case status >= 400 && status < 500:
		kind = domain.ErrorKindValidation
	}

	message := parsed.Error.Description
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &domain.ExternalError{Kind: kind, UserMessage: message, TechnicalMessage: string(body), Status: status}
}

func (r *Razorpay) Checkout(session domain.PaymentSession, req SessionRequest) Handoff {
	type cartRecord struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Author   string `json:"author"`
		Price    int64  `json:"price"`
		Quantity int    `json:"quantity"`
		Total    int64  `json:"total"`
	}
	records := make([]cartRecord, 0, len(req.Items))
	for _, item := range req.Items {
		records = append(records, cartRecord{
			ID: item.ID, Title: item.Title, Author: item.Author,
			Price: item.Price, Quantity: item.Quantity, Total: item.Price * int64(item.Quantity),
		})
	}
	cartJSON, _ := json.Marshal(records)

	return Handoff{
		Gateway: GatewayRazorpay,
		Options: map[string]any{
			"key":         r.cfg.KeyID,
			"amount":      ToPaise(req.Amount),
			"currency":    domain.CurrencyINR,
			"name":        r.cfg.MerchantName,
			"description": "Book Order Payment",
			"order_id":    session.GatewayOrderID,
			"prefill": map[string]string{
				"name":    req.Contact.Name,
				"email":   req.Contact.Email,
				"contact": req.Contact.Phone,
			},
			"notes": map[string]any{
				"customer_name":  req.Customer.CustomerName,
				"customer_id":    req.Customer.CustomerID,
				"address_id":     req.Customer.AddressID,
				"sales_order_id": req.OrderID,
				"cart_items":     string(cartJSON),
				"total_items":    len(req.Items),
				"subtotal":       formatRupees(req.Amount),
				"shipping":       formatRupees(0),
				"order_total":    formatRupees(req.Amount),
			},
		},
	}
}

// Resolve interprets the handler payload, a payment.failed event or a modal dismissal.
func (r *Razorpay) Resolve(raw json.RawMessage) (Outcome, error) {
	fields, err := decodeResult(raw)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case present(fields, "razorpay_payment_id"):
		var paymentID string
		if err := json.Unmarshal(fields["razorpay_payment_id"], &paymentID); err != nil {
			return Outcome{}, fmt.Errorf("%w: razorpay_payment_id: %v", ErrMalformedResult, err)
		}
		return Outcome{Status: OutcomePaid, PaymentID: paymentID, Response: raw}, nil
	case present(fields, "error"):
		return Outcome{
			Status:   OutcomeFailed,
			Message:  fmt.Sprintf("Payment failed: %s", errorDescription(fields["error"])),
			Response: raw,
		}, nil
	case present(fields, "dismissed"):
		return Outcome{Status: OutcomeDismissed, Response: raw}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: no payment id, error or dismissal", ErrMalformedResult)
	}
}
