package ledger

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/theauditor/loremshelf/domain"
)

func setupSQLite(t *testing.T) *Ledger {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(ctx, DriverSQLite, dsn, nil)
	require.NoError(t, err)
	require.NoError(t, l.RunMigrations("./migrations"))

	t.Cleanup(func() { l.Close() })
	return l
}

func setupPostgres(t *testing.T) *Ledger {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	l, err := Open(ctx, DriverPostgres, dsn, nil)
	require.NoError(t, err)
	require.NoError(t, l.RunMigrations("./migrations"))

	t.Cleanup(func() {
		l.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return l
}

func testOrder(id string) domain.OrderRecord {
	return domain.OrderRecord{
		SalesOrderID: id,
		DeliveryDate: "2026-11-01",
		Amount:       59800,
		Currency:     domain.CurrencyINR,
		Gateway:      "cashfree",
		PaymentSession: domain.PaymentSession{
			SessionID:      "session_1",
			GatewayOrderID: id,
		},
		CreatedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func testProof(paidAt time.Time) domain.PaymentProof {
	return domain.PaymentProof{
		Gateway:        "cashfree",
		SessionID:      "session_1",
		GatewayOrderID: "SAL-ORD-2026-00001",
		PaymentID:      "pay_1",
		Amount:         59800,
		Currency:       domain.CurrencyINR,
		Customer:       domain.Contact{Name: "Asha Rao", Email: "asha@example.com", Phone: "9876543210"},
		CompletedAt:    paidAt,
	}
}

func runLedgerSuite(t *testing.T, setup func(t *testing.T) *Ledger) {
	t.Run("external records are listed per session", func(t *testing.T) {
		l := setup(t)
		ctx := context.Background()

		require.NoError(t, l.RecordExternal(ctx, "sess-a", "customer", "CUST-00001"))
		require.NoError(t, l.RecordExternal(ctx, "sess-a", "address", "Asha Rao-Shipping-1"))
		require.NoError(t, l.RecordExternal(ctx, "sess-b", "customer", "CUST-00002"))

		records, err := l.ListExternalRecords(ctx, "sess-a")
		require.NoError(t, err)
		require.Len(t, records, 2)

		ids := []string{records[0].ExternalID, records[1].ExternalID}
		assert.ElementsMatch(t, []string{"CUST-00001", "Asha Rao-Shipping-1"}, ids)
		for _, rec := range records {
			assert.Equal(t, "sess-a", rec.SessionID)
			assert.NotEmpty(t, rec.ID)
		}
	})

	t.Run("order events are queued and drained in order", func(t *testing.T) {
		l := setup(t)
		ctx := context.Background()

		order := testOrder("SAL-ORD-2026-00001")
		require.NoError(t, l.RecordOrderCreated(ctx, "sess-a", order))
		require.NoError(t, l.RecordPaid(ctx, "sess-a", order, testProof(time.Now())))

		events, err := l.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventOrderCreated, events[0].EventType)
		assert.Equal(t, EventOrderPaid, events[1].EventType)
		assert.Equal(t, "SAL-ORD-2026-00001", events[1].AggregateID)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
		assert.Equal(t, "pay_1", payload["payment_id"])
		assert.EqualValues(t, 59800, payload["amount"])

		require.NoError(t, l.MarkEventAsProcessed(ctx, events[0].ID))

		events, err = l.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventOrderPaid, events[0].EventType)
	})

	t.Run("event limit is honoured", func(t *testing.T) {
		l := setup(t)
		ctx := context.Background()

		for _, id := range []string{"SAL-ORD-2026-00001", "SAL-ORD-2026-00002", "SAL-ORD-2026-00003"} {
			require.NoError(t, l.RecordOrderCreated(ctx, "sess-a", testOrder(id)))
		}

		events, err := l.GetUnprocessedEvents(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("payments stay stuck until reconciled", func(t *testing.T) {
		l := setup(t)
		ctx := context.Background()

		paidAt := time.Now().Add(-time.Hour).Truncate(time.Second)
		order := testOrder("SAL-ORD-2026-00001")
		require.NoError(t, l.RecordPaid(ctx, "sess-a", order, testProof(paidAt)))

		stuck, err := l.GetStuckPayments(ctx, time.Now().Add(-10*time.Minute))
		require.NoError(t, err)
		require.Len(t, stuck, 1)
		assert.Equal(t, "SAL-ORD-2026-00001", stuck[0].SalesOrderID)
		assert.Equal(t, "pay_1", stuck[0].PaymentID)
		assert.Equal(t, int64(59800), stuck[0].Amount)
		assert.True(t, paidAt.Equal(stuck[0].PaidAt), "paid_at %s != %s", stuck[0].PaidAt, paidAt)

		recent, err := l.GetStuckPayments(ctx, time.Now().Add(-2*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, recent)

		require.NoError(t, l.MarkReconciled(ctx, "SAL-ORD-2026-00001"))

		stuck, err = l.GetStuckPayments(ctx, time.Now())
		require.NoError(t, err)
		assert.Empty(t, stuck)
	})

	t.Run("duplicate payment keeps the first record", func(t *testing.T) {
		l := setup(t)
		ctx := context.Background()

		paidAt := time.Now().Add(-time.Hour).Truncate(time.Second)
		order := testOrder("SAL-ORD-2026-00001")
		require.NoError(t, l.RecordPaid(ctx, "sess-a", order, testProof(paidAt)))

		second := testProof(paidAt)
		second.PaymentID = "pay_2"
		require.NoError(t, l.RecordPaid(ctx, "sess-a", order, second))

		stuck, err := l.GetStuckPayments(ctx, time.Now())
		require.NoError(t, err)
		require.Len(t, stuck, 1)
		assert.Equal(t, "pay_1", stuck[0].PaymentID)
	})
}

func TestLedger_SQLite(t *testing.T) {
	runLedgerSuite(t, setupSQLite)
}

func TestLedger_Postgres(t *testing.T) {
	runLedgerSuite(t, setupPostgres)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestRebind(t *testing.T) {
	pg := &Ledger{driver: DriverPostgres}
	lite := &Ledger{driver: DriverSQLite}

	query := "UPDATE payments SET reconciled_at = ? WHERE sales_order_id = ?"
	assert.Equal(t, "UPDATE payments SET reconciled_at = $1 WHERE sales_order_id = $2", pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}
