package quote

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketquotes/internal/provider"
)

// ErrorKind classifies a failed quote request.
type ErrorKind int

const (
	Internal ErrorKind = iota
	InvalidInput
	RateLimited
	NotFound
	UpstreamTimeout
	UpstreamError
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case RateLimited:
		return "rate_limited"
	case NotFound:
		return "not_found"
	case UpstreamTimeout:
		return "upstream_timeout"
	case UpstreamError:
		return "upstream_error"
	default:
		return "internal"
	}
}

// Status is the HTTP status code for the kind.
func (k ErrorKind) Status() int {
	switch k {
	case InvalidInput:
		return http.StatusBadRequest
	case RateLimited:
		return http.StatusTooManyRequests
	case NotFound:
		return http.StatusNotFound
	case UpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by Service. Message is safe to show to callers; Err holds
// the underlying cause for logs and development responses.
type Error struct {
	Kind       ErrorKind
	Message    string
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int { return e.Kind.Status() }

// KindOf reports the kind of err, Internal for anything that is not an *Error.
func KindOf(err error) ErrorKind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return Internal
}

func kindFromStatus(s provider.Status) ErrorKind {
	switch s {
	case provider.StatusNotFound:
		return NotFound
	case provider.StatusTimeout:
		return UpstreamTimeout
	case provider.StatusError, provider.StatusThrottled:
		return UpstreamError
	default:
		return Internal
	}
}

func resultError(id string, res provider.Result) *Error {
	kind := kindFromStatus(res.Status)
	var msg string
	switch kind {
	case NotFound:
		msg = fmt.Sprintf("no quote found for %s", id)
	case UpstreamTimeout:
		msg = fmt.Sprintf("upstream timed out resolving %s", id)
	default:
		msg = fmt.Sprintf("failed to fetch quote for %s", id)
	}
	return &Error{Kind: kind, Message: msg, Err: res.Err}
}
