// Package erp talks to the ERPNext/Frappe REST API that holds customers,
// addresses, sales orders and catalog items.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// CallRecorder observes every outbound call. kind is empty on success.
type CallRecorder interface {
	RecordExternalCall(ctx context.Context, service, operation string, kind domain.ErrorKind)
}

type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

type response struct {
	status int
	body   []byte
}

var errServerStatus = errors.New("erp returned a server error")

type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	recorder   CallRecorder
	logger     *slog.Logger
	now        func() time.Time
}

func NewClient(cfg Config, recorder CallRecorder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "erp")

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authHeader: fmt.Sprintf("token %s:%s", cfg.APIKey, cfg.APISecret),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker:  circuitbreaker.New[*response](breakerConfig(), logger),
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func breakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("erp")
	cfg.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		if errors.Is(err, errServerStatus) {
			return false
		}
		var extErr *domain.ExternalError
		if errors.As(err, &extErr) {
			return extErr.Kind != domain.ErrorKindNetwork
		}
		return false
	}
	return cfg
}

// BaseURL is the ERP host; relative file paths (covers) are resolved against it.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState is exposed for health reporting.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// do sends one request and decodes a 2xx JSON body into out.
// Only transport failures and 5xx responses count against the breaker.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, payload, out any) error {
	err := c.send(ctx, method, path, query, payload, out)

	var extErr *domain.ExternalError
	kind := domain.ErrorKind("")
	if errors.As(err, &extErr) {
		kind = extErr.Kind
	} else if err != nil {
		kind = domain.ErrorKindUnknown
	}
	if c.recorder != nil {
		c.recorder.RecordExternalCall(ctx, "erp", operation, kind)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "erp call failed", "operation", operation, "error", err)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", path, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, domain.NewNetworkError(err.Error())
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
			extErr := ParseErrorResponse(httpResp)
			if httpResp.StatusCode >= 500 {
				return nil, errors.Join(errServerStatus, extErr)
			}
			return nil, extErr
		}

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, domain.NewNetworkError(err.Error())
		}
		return &response{status: httpResp.StatusCode, body: data}, nil
	})
	if err != nil {
		if circuitbreaker.IsOpenError(err) {
			return domain.NewNetworkError(fmt.Sprintf("circuit breaker erp: %v", err))
		}
		var extErr *domain.ExternalError
		if errors.As(err, &extErr) {
			return extErr
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &domain.ExternalError{
			Kind:             domain.ErrorKindServer,
			UserMessage:      unexpectedErrorMessage,
			TechnicalMessage: fmt.Sprintf("decode %s response: %v", path, err),
			Status:           resp.status,
		}
	}
	return nil
}

func resourcePath(doctype string, name ...string) string {
	p := "/api/resource/" + url.PathEscape(doctype)
	if len(name) > 0 {
		p += "/" + url.PathEscape(name[0])
	}
	return p
}
