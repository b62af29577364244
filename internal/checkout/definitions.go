package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/cart"
	"github.com/theauditor/loremshelf/internal/erp"
	"github.com/theauditor/loremshelf/internal/payment"
	"github.com/theauditor/loremshelf/internal/state"
)

// RecordClient is the part of the ERP client the checkout drives.
type RecordClient interface {
	CreateCustomer(ctx context.Context, name, phone, email string) (string, error)
	CreateAddress(ctx context.Context, customerID, customerName string, form domain.ShippingForm) (string, error)
	CreateSalesOrder(ctx context.Context, req erp.SalesOrderRequest) (*erp.SalesOrder, error)
	UpdateOrderPaymentStatus(ctx context.Context, orderID string, proof *domain.PaymentProof) error
}

// Ledger keeps a local trail of the external records a session created.
type Ledger interface {
	RecordExternal(ctx context.Context, sessionID, recordType, externalID string) error
	RecordOrderCreated(ctx context.Context, sessionID string, order domain.OrderRecord) error
	RecordPaid(ctx context.Context, sessionID string, order domain.OrderRecord, proof domain.PaymentProof) error
	MarkReconciled(ctx context.Context, salesOrderID string) error
}

type Metrics interface {
	SubmissionFinished(ctx context.Context, stage string, ok bool)
	PaymentOutcome(ctx context.Context, gateway, status string)
	ReconciliationFinished(ctx context.Context, ok bool)
}

// Record types written to the ledger.
const (
	RecordCustomer       = "customer"
	RecordAddress        = "address"
	RecordSalesOrder     = "sales_order"
	RecordPaymentSession = "payment_session"
)

type Deps struct {
	State   *state.Store
	Cart    *cart.Store
	Locker  *state.SessionLocker
	Records RecordClient
	Gateway payment.Gateway
	Latch   *SubmissionLatch
	Ledger  Ledger
	Metrics Metrics
	Logger  *slog.Logger
}

type Service struct {
	state      *state.Store
	cart       *cart.Store
	locker     *state.SessionLocker
	records    RecordClient
	gateway    payment.Gateway
	latch      *SubmissionLatch
	reconciler *Reconciler
	ledger     Ledger
	metrics    Metrics
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "checkout")

	ledger := deps.Ledger
	if ledger == nil {
		ledger = noopLedger{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	latch := deps.Latch
	if latch == nil {
		latch = NewSubmissionLatch(DefaultSubmissionTTL)
	}

	return &Service{
		state:      deps.State,
		cart:       deps.Cart,
		locker:     deps.Locker,
		records:    deps.Records,
		gateway:    deps.Gateway,
		latch:      latch,
		reconciler: newReconciler(deps.State, deps.Records, ledger, metrics, logger),
		ledger:     ledger,
		metrics:    metrics,
		validate:   newValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Close stops the submission latch cleanup.
func (s *Service) Close() error {
	return s.latch.Close()
}

type noopLedger struct{}

func (noopLedger) RecordExternal(context.Context, string, string, string) error {
	return nil
}

func (noopLedger) RecordOrderCreated(context.Context, string, domain.OrderRecord) error {
	return nil
}

func (noopLedger) RecordPaid(context.Context, string, domain.OrderRecord, domain.PaymentProof) error {
	return nil
}

func (noopLedger) MarkReconciled(context.Context, string) error {
	return nil
}

type noopMetrics struct{}

func (noopMetrics) SubmissionFinished(context.Context, string, bool) {}

func (noopMetrics) PaymentOutcome(context.Context, string, string) {}

func (noopMetrics) ReconciliationFinished(context.Context, bool) {}
