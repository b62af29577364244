package erp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/theauditor/loremshelf/domain"
)

const unexpectedErrorMessage = "An unexpected error occurred"

// ParseErrorResponse normalises a failed ERP response. The remote message is
// passed through verbatim; only the kind is derived from it.
func ParseErrorResponse(resp *http.Response) *domain.ExternalError {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ExternalError{
			Kind:             domain.ErrorKindNetwork,
			UserMessage:      "Network error occurred",
			TechnicalMessage: "Failed to read error response",
			Status:           resp.StatusCode,
		}
	}
	return parseErrorBody(resp.StatusCode, body)
}

type errorBody struct {
	Exception      string          `json:"exception"`
	ServerMessages json.RawMessage `json:"_server_messages"`
	ErrorMessage   json.RawMessage `json:"_error_message"`
	Message        json.RawMessage `json:"message"`
}

func parseErrorBody(status int, body []byte) *domain.ExternalError {
	raw := string(body)

	switch status {
	case http.StatusUnauthorized:
		return &domain.ExternalError{Kind: domain.ErrorKindAuthentication, UserMessage: "Authentication failed", TechnicalMessage: raw, Status: status}
	case http.StatusForbidden:
		return &domain.ExternalError{Kind: domain.ErrorKindAuthentication, UserMessage: "Permission denied", TechnicalMessage: raw, Status: status}
	case http.StatusNotFound:
		return &domain.ExternalError{Kind: domain.ErrorKindNotFound, UserMessage: "Resource not found", TechnicalMessage: raw, Status: status}
	}

	if len(body) > 0 {
		if !json.Valid(body) {
			return &domain.ExternalError{Kind: domain.ErrorKindServer, UserMessage: raw, TechnicalMessage: raw, Status: status}
		}
		// valid JSON that is not an object carries no message fields
		var parsed errorBody
		_ = json.Unmarshal(body, &parsed)

		kind, message := splitException(parsed.Exception)
		if message == "" {
			message = firstServerMessage(parsed.ServerMessages)
		}
		if message == "" {
			message = jsonString(parsed.ErrorMessage)
		}
		if message == "" {
			message = jsonString(parsed.Message)
		}
		if message != "" {
			return &domain.ExternalError{Kind: kind, UserMessage: message, TechnicalMessage: raw, Status: status}
		}
	}

	technical := raw
	if technical == "" {
		technical = fmt.Sprintf("HTTP %d", status)
	}
	return &domain.ExternalError{Kind: domain.ErrorKindUnknown, UserMessage: unexpectedErrorMessage, TechnicalMessage: technical, Status: status}
}

// splitException splits "<type>: <message>" on the first ": ". The kind is
// matched against the type prefix only. Without a separator nothing is extracted.
func splitException(exception string) (domain.ErrorKind, string) {
	prefix, message, found := strings.Cut(exception, ": ")
	if !found {
		return domain.ErrorKindUnknown, ""
	}

	t := strings.ToLower(prefix)
	kind := domain.ErrorKindUnknown
	switch {
	case strings.Contains(t, "duplicate"):
		kind = domain.ErrorKindDuplicate
	case strings.Contains(t, "permission"):
		kind = domain.ErrorKindPermission
	case strings.Contains(t, "validation"), strings.Contains(t, "invalid"):
		kind = domain.ErrorKindValidation
	case strings.Contains(t, "mandatory"):
		kind = domain.ErrorKindMandatory
	case strings.Contains(t, "notfound"):
		kind = domain.ErrorKindNotFound
	}
	return kind, strings.TrimSpace(message)
}

// firstServerMessage decodes _server_messages: a JSON string holding an array
// whose first element is an object (or a JSON string of one) with a message field.
func firstServerMessage(raw json.RawMessage) string {
	encoded := jsonString(raw)
	if encoded == "" {
		return ""
	}
	var messages []json.RawMessage
	if err := json.Unmarshal([]byte(encoded), &messages); err != nil || len(messages) == 0 {
		return ""
	}

	first := []byte(messages[0])
	if s := jsonString(messages[0]); s != "" {
		first = []byte(s)
	}
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(first, &msg); err != nil {
		return ""
	}
	return msg.Message
}

func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
