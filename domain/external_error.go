package domain

import "fmt"

type ErrorKind string

const (
	ErrorKindDuplicate      ErrorKind = "duplicate"
	ErrorKindPermission     ErrorKind = "permission"
	ErrorKindValidation     ErrorKind = "validation"
	ErrorKindNotFound       ErrorKind = "not_found"
	ErrorKindMandatory      ErrorKind = "mandatory"
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindServer         ErrorKind = "server"
	ErrorKindAuthentication ErrorKind = "authentication"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// ExternalError is a failure reported by the ERP or a payment gateway.
// UserMessage is safe to display; TechnicalMessage carries the raw detail.
type ExternalError struct {
	Kind             ErrorKind `json:"type"`
	UserMessage      string    `json:"userMessage"`
	TechnicalMessage string    `json:"technicalMessage"`
	Status           int       `json:"status,omitempty"`
}

func (e *ExternalError) Error() string {
	if e.TechnicalMessage == "" || e.TechnicalMessage == e.UserMessage {
		return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.UserMessage, e.TechnicalMessage)
}

func NewNetworkError(technical string) *ExternalError {
	return &ExternalError{
		Kind:             ErrorKindNetwork,
		UserMessage:      "Network error occurred",
		TechnicalMessage: technical,
	}
}
