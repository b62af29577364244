package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theauditor/loremshelf/domain"
)

var (
	ErrEmptyCart                = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition        = errors.New("illegal transition of checkout step")
	ErrSubmissionInProgress     = errors.New("an order submission is already in progress")
	ErrNoSession                = errors.New("checkout requires a session")
	ErrNoPendingOrder           = errors.New("no order is awaiting payment")
	ErrNothingToReconcile       = errors.New("no paid order awaiting reconciliation")
	ErrReconciliationInProgress = errors.New("reconciliation is already running")
)

func illegalTransition(from, to domain.CheckoutStep) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid shipping field in form order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "invalid shipping form: " + strings.Join(names, ", ")
}

// Effects focuses the first invalid field.
func (e *ValidationError) Effects() []domain.Effect {
	if len(e.Fields) == 0 {
		return nil
	}
	return []domain.Effect{domain.FocusField(e.Fields[0].Field)}
}

// SubmissionError aborts one Place Order attempt. Records created before the
// failing stage are not rolled back.
type SubmissionError struct {
	Stage  Stage
	Report SubmissionReport
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order submission failed at %s: %v", e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
