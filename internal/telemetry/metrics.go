package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/theauditor/loremshelf/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	externalCalls   metric.Int64Counter
	submissions     metric.Int64Counter
	paymentOutcomes metric.Int64Counter
	reconciliations metric.Int64Counter
	outboxPublished metric.Int64Counter
	stuckPayments   metric.Int64Gauge
	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.externalCalls, "storefront_external_calls", "Calls to the ERP and payment gateways by result kind"},
		{&m.submissions, "storefront_order_submissions", "Place Order attempts by final stage"},
		{&m.paymentOutcomes, "storefront_payment_outcomes", "Gateway outcomes reported by the client"},
		{&m.reconciliations, "storefront_reconciliations", "Attempts to mark a paid order Paid in the ERP"},
		{&m.outboxPublished, "storefront_outbox_published", "Order events published to Kafka"},
		{&m.httpRequests, "storefront_http_requests", "HTTP requests by route and status"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	m.stuckPayments, err = meter.Int64Gauge("storefront_unreconciled_payments",
		metric.WithDescription("Payments paid locally but still Pending in the ERP after the grace period"))
	if err != nil {
		return nil, fmt.Errorf("failed to create unreconciled payments gauge: %w", err)
	}

	m.httpDuration, err = meter.Float64Histogram("storefront_http_request_duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return m, nil
}

// RecordExternalCall counts one outbound call. An empty kind is a success.
func (m *Metrics) RecordExternalCall(ctx context.Context, service, operation string, kind domain.ErrorKind) {
	result := "ok"
	if kind != "" {
		result = string(kind)
	}
	m.externalCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

func (m *Metrics) SubmissionFinished(ctx context.Context, stage string, ok bool) {
	m.submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("ok", ok),
	))
}

func (m *Metrics) PaymentOutcome(ctx context.Context, gateway, status string) {
	m.paymentOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("status", status),
	))
}

func (m *Metrics) ReconciliationFinished(ctx context.Context, ok bool) {
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

func (m *Metrics) OutboxPublished(ctx context.Context, eventType string, n int) {
	m.outboxPublished.Add(ctx, int64(n), metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) UnreconciledPayments(ctx context.Context, n int) {
	m.stuckPayments.Record(ctx, int64(n))
}

func (m *Metrics) HTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, elapsed.Seconds(), attrs)
}
