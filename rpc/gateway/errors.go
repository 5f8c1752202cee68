package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

type Kind uint8

const (
	KindNetwork    Kind = iota // transport failure, timeout or cancellation
	KindHTTPStatus             // the server answered with a non-2xx status
	KindParse                  // a body could not be encoded or decoded
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindHTTPStatus:
		return "HTTPStatusError"
	case KindParse:
		return "ParseError"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by the gateway.
type Error struct {
	Kind    Kind
	Status  int             // HTTP status, 0 for network errors
	Msg     string          // human readable message
	Payload json.RawMessage // raw body of the failed answer, if any
	Err     error           // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether an idempotent request failing with e may be repeated.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindHTTPStatus:
		return e.Status >= 500 || e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// IsStatus reports whether err is an HTTP status error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindHTTPStatus && e.Status == status
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Msg: err.Error(), Err: err}
}

// statusError builds the error for a non-2xx answer. The message is taken from
// the "message" or "error" field of a JSON body, then from the raw body text,
// and finally falls back to "HTTP Error <status>".
func statusError(status int, raw []byte) *Error {
	e := &Error{Kind: KindHTTPStatus, Status: status}

	trimmed := bytes.TrimSpace(raw)
	if json.Valid(trimmed) && len(trimmed) > 0 {
		e.Payload = append(json.RawMessage(nil), trimmed...)

		var fields map[string]any
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			for _, name := range []string{"message", "error"} {
				if s, ok := fields[name].(string); ok && strings.TrimSpace(s) != "" {
					e.Msg = s
					return e
				}
			}
		}
	}

	if len(trimmed) > 0 {
		e.Msg = string(trimmed)
		return e
	}
	e.Msg = fmt.Sprintf("HTTP Error %d", status)
	return e
}
