package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call
type Kind string

const (
	KindAuthRequired  Kind = "AuthRequired"
	KindForbidden     Kind = "Forbidden"
	KindNotFound      Kind = "NotFound"
	KindServerError   Kind = "ServerError"
	KindRequestFailed Kind = "RequestFailed"
)

var (
	// ErrAuthRequired is matched by failures classified as HTTP 401
	ErrAuthRequired = errors.New("authentication required")

	// ErrForbidden is matched by failures classified as HTTP 403
	ErrForbidden = errors.New("access forbidden")

	// ErrNotFound is matched by failures classified as HTTP 404
	ErrNotFound = errors.New("resource not found")

	// ErrServerError is matched by failures classified as HTTP 5xx
	ErrServerError = errors.New("server error")

	// ErrRequestFailed is matched by other 4xx responses and network failures
	ErrRequestFailed = errors.New("request failed")

	// ErrInvalidBaseURL is returned by New for an unusable base URL
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

const (
	messageAuthRequired  = "Authentication required"
	messageForbidden     = "Access forbidden"
	messageNotFound      = "Resource not found"
	messageServerError   = "Server error, please try again later"
	messageGeneric       = "Request failed"
	messageMalformedBody = "Malformed response from backend"
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuthRequired:
		return ErrAuthRequired
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindServerError:
		return ErrServerError
	default:
		return ErrRequestFailed
	}
}

// Transient reports whether a retry later might succeed
func (k Kind) Transient() bool {
	return k == KindServerError
}

// Error is a classified backend failure
type Error struct {
	Kind       Kind
	StatusCode int    // 0 when no response was received
	Message    string // human-readable text shown to the operator
	Op         string // "METHOD /path"
	Err        error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (%s, status %d)", e.Op, e.Message, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Kind)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the classification of err, or "" if err is not a transport error
func KindOf(err error) Kind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return ""
}

func classifyStatus(status int, detail string) (Kind, string) {
	switch {
	case status == 401:
		return KindAuthRequired, messageAuthRequired
	case status == 403:
		return KindForbidden, messageForbidden
	case status == 404:
		return KindNotFound, messageNotFound
	case status >= 500:
		return KindServerError, messageServerError
	default:
		if detail != "" {
			return KindRequestFailed, detail
		}
		return KindRequestFailed, messageGeneric
	}
}
