package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/catalog"
	"github.com/theauditor/loremshelf/internal/checkout"
	"github.com/theauditor/loremshelf/internal/payment"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	ErrorResponse
	Fields  []checkout.FieldError `json:"fields"`
	Effects []domain.Effect       `json:"effects,omitempty"`
}

// SubmissionErrorResponse carries the per-stage report shown in the
// blocking error view.
type SubmissionErrorResponse struct {
	ErrorResponse
	Stage  checkout.Stage            `json:"stage"`
	Type   domain.ErrorKind          `json:"type,omitempty"`
	Report checkout.SubmissionReport `json:"report"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps service errors to HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *checkout.ValidationError
	if errors.As(err, &validationErr) {
		respondJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			ErrorResponse: ErrorResponse{Error: "please correct the highlighted fields", Code: "validation_failed"},
			Fields:        validationErr.Fields,
			Effects:       validationErr.Effects(),
		})
		return
	}

	var submissionErr *checkout.SubmissionError
	if errors.As(err, &submissionErr) {
		resp := SubmissionErrorResponse{
			ErrorResponse: ErrorResponse{Error: "order could not be placed", Code: "submission_failed"},
			Stage:         submissionErr.Stage,
			Report:        submissionErr.Report,
		}
		var extErr *domain.ExternalError
		if errors.As(submissionErr.Err, &extErr) {
			resp.Error = extErr.UserMessage
			resp.Details = extErr.TechnicalMessage
			resp.Type = extErr.Kind
		}
		respondJSON(w, http.StatusBadGateway, resp)
		return
	}

	var extErr *domain.ExternalError
	if errors.As(err, &extErr) {
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   extErr.UserMessage,
			Code:    "external_" + string(extErr.Kind),
			Details: extErr.TechnicalMessage,
		})
		return
	}

	var status int
	var code string

	switch {
	case errors.Is(err, checkout.ErrNoSession):
		status, code = http.StatusBadRequest, "missing_session"
	case errors.Is(err, checkout.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, payment.ErrMalformedResult):
		status, code = http.StatusBadRequest, "invalid_payment_result"
	case errors.Is(err, catalog.ErrBookNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, checkout.ErrIllegalTransition):
		status, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		status, code = http.StatusConflict, "submission_in_progress"
	case errors.Is(err, checkout.ErrReconciliationInProgress):
		status, code = http.StatusConflict, "reconciliation_in_progress"
	case errors.Is(err, checkout.ErrNoPendingOrder):
		status, code = http.StatusConflict, "no_pending_order"
	case errors.Is(err, checkout.ErrNothingToReconcile):
		status, code = http.StatusConflict, "nothing_to_reconcile"
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
