package stepservice

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FallbackMessage is reported when a failure carries no usable message at all.
const FallbackMessage = "Unexpected error"

// PageError is one page-level error entry reported by the remote service.
type PageError struct {
	Message string `json:"message"`
}

// RemoteError is a structured failure returned by the remote step service.
type RemoteError struct {
	// Status is the transport status code, when there is one.
	Status int

	PageErrors []PageError
	Message    string
	// FieldErrors is the raw per-field error mapping, reported verbatim as text.
	FieldErrors json.RawMessage
	// Structured is set when the service answered with a JSON body. Such a body with
	// none of the known keys reads as FallbackMessage rather than the bare status.
	Structured bool
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if msg := e.userMessage(); msg != "" {
		return msg
	}
	if e.Structured {
		return FallbackMessage
	}
	if e.Status != 0 {
		return fmt.Sprintf("step service returned HTTP %d", e.Status)
	}
	return FallbackMessage
}

func (e *RemoteError) userMessage() string {
	if len(e.PageErrors) > 0 && strings.TrimSpace(e.PageErrors[0].Message) != "" {
		return e.PageErrors[0].Message
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	if fe := strings.TrimSpace(string(e.FieldErrors)); fe != "" && fe != "null" && fe != "{}" {
		return fe
	}
	return ""
}

// NormalizeError extracts the most specific message available, in order:
// the first page-level error, the structured message, the field-error mapping as text,
// the error's own message, and finally FallbackMessage.
func NormalizeError(err error) string {
	if err == nil {
		return FallbackMessage
	}
	if re := (*RemoteError)(nil); errors.As(err, &re) && re != nil {
		if msg := re.userMessage(); msg != "" {
			return msg
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackMessage
}
