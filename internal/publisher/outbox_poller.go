package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/theauditor/loremshelf/internal/ledger"
)

const batchSize = 100

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*ledger.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	GetStuckPayments(ctx context.Context, paidBefore time.Time) ([]*ledger.Payment, error)
}

type Metrics interface {
	OutboxPublished(ctx context.Context, eventType string, n int)
	UnreconciledPayments(ctx context.Context, n int)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller publishes order events from the ledger and reports paid
// orders the ERP still shows as Pending.
type OutboxPoller struct {
	timeout      time.Duration
	eventTick    time.Duration
	recoveryTick time.Duration
	grace        time.Duration
	repo         OutboxRepository
	writer       messageWriter
	metrics      Metrics
	logger       *slog.Logger
	now          func() time.Time
}

type Config struct {
	Brokers []string
	Topic   string
	// Grace is how long a paid order may stay unreconciled before it is reported.
	Grace time.Duration
}

func NewOutboxPoller(repo OutboxRepository, cfg Config, metrics Metrics, logger *slog.Logger) *OutboxPoller {
	if logger == nil {
		logger = slog.Default()
	}
	var w messageWriter
	if len(cfg.Brokers) > 0 {
		w = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
	}
	return &OutboxPoller{
		timeout:      5 * time.Second,
		eventTick:    time.Second,
		recoveryTick: time.Minute,
		grace:        cfg.Grace,
		repo:         repo,
		writer:       w,
		metrics:      metrics,
		logger:       logger.With("component", "outbox_poller"),
		now:          time.Now,
	}
}

// Run polls until ctx is cancelled. Without brokers only the
// unreconciled payment report runs.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			if p.writer != nil {
				p.processUnpublishedEvents(ctx)
			}
		case <-recoveryTicker.C:
			p.reportStuckPayments(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.logger.Error("failed to fetch events", "error", err)
		return
	}

	// an order whose event failed keeps its later events for the next tick
	blocked := make(map[string]bool)
	for _, event := range events {
		if blocked[event.AggregateID] {
			continue
		}
		if err := p.publishToKafka(ctx, event); err != nil {
			p.logger.Error("failed to publish event", "event_id", event.ID, "error", err)
			blocked[event.AggregateID] = true
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error("failed to mark event as processed", "event_id", event.ID, "error", err)
			blocked[event.AggregateID] = true
			continue
		}
		if p.metrics != nil {
			p.metrics.OutboxPublished(ctx, event.EventType, 1)
		}
	}
}

// reportStuckPayments logs every order paid locally more than grace ago
// that was never marked Paid in the ERP.
func (p *OutboxPoller) reportStuckPayments(ctx context.Context) {
	payments, err := p.repo.GetStuckPayments(ctx, p.now().Add(-p.grace))
	if err != nil {
		p.logger.Error("failed to get unreconciled payments", "error", err)
		return
	}
	for _, pay := range payments {
		p.logger.Warn("payment not reconciled with ERP",
			"sales_order_id", pay.SalesOrderID,
			"session_id", pay.SessionID,
			"gateway", pay.Gateway,
			"paid_at", pay.PaidAt)
	}
	if p.metrics != nil {
		p.metrics.UnreconciledPayments(ctx, len(payments))
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *ledger.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // sales order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
