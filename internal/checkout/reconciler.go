package checkout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/state"
)

type ReconcileResult struct {
	SalesOrderID string                `json:"salesOrderId,omitempty"`
	Attempted    bool                  `json:"attempted"`
	Reconciled   bool                  `json:"reconciled"`
	Error        *domain.ExternalError `json:"error,omitempty"`
}

type latchState int

const (
	latchRunning latchState = iota + 1
	latchDone
)

// Reconciler marks the sales order Paid once a session reaches confirmation
// and clears the session afterwards. It runs at most once per visit to
// confirmation; a failure leaves every stored entry in place.
type Reconciler struct {
	state   *state.Store
	records RecordClient
	ledger  Ledger
	metrics Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	latches map[string]latchState
}

func newReconciler(st *state.Store, records RecordClient, ledger Ledger, metrics Metrics, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		state:   st,
		records: records,
		ledger:  ledger,
		metrics: metrics,
		logger:  logger.With("subcomponent", "reconciler"),
		latches: make(map[string]latchState),
	}
}

func (r *Reconciler) tryStart(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.latches[sessionID]; ok {
		return false
	}
	r.latches[sessionID] = latchRunning
	return true
}

func (r *Reconciler) finish(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.latches[sessionID]; ok {
		r.latches[sessionID] = latchDone
	}
}

func (r *Reconciler) reset(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.latches, sessionID)
}

// retry clears a finished latch and runs again.
func (r *Reconciler) retry(ctx context.Context, sessionID string, sess domain.CheckoutSession) (*ReconcileResult, error) {
	r.mu.Lock()
	if r.latches[sessionID] == latchRunning {
		r.mu.Unlock()
		return nil, ErrReconciliationInProgress
	}
	delete(r.latches, sessionID)
	r.mu.Unlock()

	result := r.run(ctx, sessionID, sess)
	return &result, nil
}

// run expects the caller to hold the session lock.
func (r *Reconciler) run(ctx context.Context, sessionID string, sess domain.CheckoutSession) ReconcileResult {
	if !r.tryStart(sessionID) {
		return ReconcileResult{}
	}
	if sess.Order == nil || sess.Payment == nil || sess.Order.SalesOrderID == "" {
		r.finish(sessionID)
		return ReconcileResult{}
	}

	result := ReconcileResult{SalesOrderID: sess.Order.SalesOrderID, Attempted: true}
	if err := r.records.UpdateOrderPaymentStatus(ctx, sess.Order.SalesOrderID, sess.Payment); err != nil {
		r.finish(sessionID)
		r.metrics.ReconciliationFinished(ctx, false)
		r.logger.ErrorContext(ctx, "failed to mark order paid, keeping session state",
			"session_id", sessionID,
			"sales_order_id", sess.Order.SalesOrderID,
			"error", err)
		result.Error = asExternal(err)
		return result
	}

	if err := r.ledger.MarkReconciled(ctx, sess.Order.SalesOrderID); err != nil {
		r.logger.WarnContext(ctx, "ledger write failed", "session_id", sessionID, "sales_order_id", sess.Order.SalesOrderID, "error", err)
	}
	if err := r.state.Clear(ctx, sessionID, state.CheckoutKeys...); err != nil {
		r.logger.ErrorContext(ctx, "failed to clear reconciled session", "session_id", sessionID, "error", err)
	}
	// the cleared session starts over at cart, which leaves confirmation
	r.reset(sessionID)
	r.metrics.ReconciliationFinished(ctx, true)
	r.logger.InfoContext(ctx, "order reconciled", "session_id", sessionID, "sales_order_id", sess.Order.SalesOrderID)

	result.Reconciled = true
	return result
}
