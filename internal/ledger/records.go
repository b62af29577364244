package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/theauditor/loremshelf/domain"
)

const (
	EventOrderCreated = "order.created"
	EventOrderPaid    = "order.paid"
)

type ExternalRecord struct {
	ID         string
	SessionID  string
	RecordType string
	ExternalID string
	CreatedAt  time.Time
}

type Payment struct {
	SalesOrderID string
	SessionID    string
	Gateway      string
	PaymentID    string
	Amount       int64
	Currency     string
	PaidAt       time.Time
	ReconciledAt *time.Time
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

func (l *Ledger) RecordExternal(ctx context.Context, sessionID, recordType, externalID string) error {
	query := l.rebind(`INSERT INTO external_records (id, session_id, record_type, external_id, created_at)
	          VALUES (?, ?, ?, ?, ?)`)

	_, err := l.db.ExecContext(ctx, query, uuid.NewString(), sessionID, recordType, externalID, l.timestamp())
	if err != nil {
		return fmt.Errorf("insert external record: %w", err)
	}
	return nil
}

func (l *Ledger) ListExternalRecords(ctx context.Context, sessionID string) ([]ExternalRecord, error) {
	query := l.rebind(`SELECT id, session_id, record_type, external_id, created_at
	          FROM external_records WHERE session_id = ? ORDER BY created_at, record_type`)

	rows, err := l.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query external records: %w", err)
	}
	defer rows.Close()

	var records []ExternalRecord
	for rows.Next() {
		var rec ExternalRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.RecordType, &rec.ExternalID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan external record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordOrderCreated queues an order.created event for the new sales order.
func (l *Ledger) RecordOrderCreated(ctx context.Context, sessionID string, order domain.OrderRecord) error {
	payload := map[string]any{
		"sales_order_id":     order.SalesOrderID,
		"session_id":         sessionID,
		"amount":             order.Amount,
		"currency":           order.Currency,
		"gateway":            order.Gateway,
		"payment_session_id": order.PaymentSession.SessionID,
		"delivery_date":      order.DeliveryDate,
		"created_at":         order.CreatedAt,
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		return l.insertEvent(ctx, tx, order.SalesOrderID, EventOrderCreated, payload)
	})
}

// RecordPaid stores the local payment and queues an order.paid event in one transaction.
func (l *Ledger) RecordPaid(ctx context.Context, sessionID string, order domain.OrderRecord, proof domain.PaymentProof) error {
	return l.withTx(ctx, func(tx *sql.Tx) error {
		query := l.rebind(`INSERT INTO payments (sales_order_id, session_id, gateway, payment_id, amount, currency, paid_at)
		          VALUES (?, ?, ?, ?, ?, ?, ?)
		          ON CONFLICT (sales_order_id) DO NOTHING`)

		paidAt := proof.CompletedAt.UTC().Truncate(time.Microsecond)
		if _, err := tx.ExecContext(ctx, query,
			order.SalesOrderID,
			sessionID,
			proof.Gateway,
			proof.PaymentID,
			proof.Amount,
			proof.Currency,
			paidAt); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		payload := map[string]any{
			"sales_order_id":   order.SalesOrderID,
			"session_id":       sessionID,
			"gateway":          proof.Gateway,
			"payment_id":       proof.PaymentID,
			"gateway_order_id": proof.GatewayOrderID,
			"amount":           proof.Amount,
			"currency":         proof.Currency,
			"customer":         proof.Customer,
			"completed_at":     paidAt,
		}
		return l.insertEvent(ctx, tx, order.SalesOrderID, EventOrderPaid, payload)
	})
}

func (l *Ledger) MarkReconciled(ctx context.Context, salesOrderID string) error {
	query := l.rebind(`UPDATE payments SET reconciled_at = ? WHERE sales_order_id = ?`)
	if _, err := l.db.ExecContext(ctx, query, l.timestamp(), salesOrderID); err != nil {
		return fmt.Errorf("mark payment reconciled: %w", err)
	}
	return nil
}

// GetStuckPayments lists payments taken before the cutoff that were never
// reconciled with the ERP.
func (l *Ledger) GetStuckPayments(ctx context.Context, paidBefore time.Time) ([]*Payment, error) {
	query := l.rebind(`SELECT sales_order_id, session_id, gateway, COALESCE(payment_id, ''), amount, currency, paid_at
	          FROM payments WHERE reconciled_at IS NULL AND paid_at < ? ORDER BY paid_at`)

	rows, err := l.db.QueryContext(ctx, query, paidBefore.UTC())
	if err != nil {
		return nil, fmt.Errorf("query stuck payments: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.SalesOrderID, &p.SessionID, &p.Gateway, &p.PaymentID, &p.Amount, &p.Currency, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (l *Ledger) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := l.rebind(`SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT ?`)

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (l *Ledger) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := l.rebind(`UPDATE outbox_events SET processed_at = ? WHERE id = ?`)
	if _, err := l.db.ExecContext(ctx, query, l.timestamp(), id); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (l *Ledger) insertEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	query := l.rebind(`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	          VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, aggregateID, eventType, string(data), l.timestamp()); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (l *Ledger) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
