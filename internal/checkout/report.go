package checkout

import (
	"errors"

	"github.com/theauditor/loremshelf/domain"
)

type Stage string

const (
	StageCustomer       Stage = "customer"
	StageAddress        Stage = "address"
	StageOrder          Stage = "order"
	StagePaymentSession Stage = "payment_session"
)

type StepResult struct {
	Success bool                  `json:"success"`
	ID      string                `json:"id,omitempty"`
	Reused  bool                  `json:"reused,omitempty"`
	Error   *domain.ExternalError `json:"error,omitempty"`
}

// SubmissionReport backs the blocking detail view shown when Place Order fails.
type SubmissionReport struct {
	Customer       StepResult  `json:"customer"`
	Address        StepResult  `json:"address"`
	Order          *StepResult `json:"order,omitempty"`
	PaymentSession *StepResult `json:"paymentSession,omitempty"`
}

func succeeded(id string) StepResult {
	return StepResult{Success: true, ID: id}
}

func failed(err error) StepResult {
	return StepResult{Error: asExternal(err)}
}

// skippedAddress is reported when the customer could not be created.
func skippedAddress() StepResult {
	return StepResult{Error: &domain.ExternalError{
		Kind:             domain.ErrorKindUnknown,
		UserMessage:      "Not attempted due to customer creation failure",
		TechnicalMessage: "Skipped",
	}}
}

func asExternal(err error) *domain.ExternalError {
	var extErr *domain.ExternalError
	if errors.As(err, &extErr) {
		return extErr
	}
	return &domain.ExternalError{
		Kind:             domain.ErrorKindUnknown,
		UserMessage:      "An unexpected error occurred",
		TechnicalMessage: err.Error(),
	}
}
