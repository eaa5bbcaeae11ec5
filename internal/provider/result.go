package provider

import (
	"context"
	"errors"
	"net"
)

// Status is the outcome class of one fetch attempt.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusTimeout
	StatusError
	StatusThrottled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusTimeout:
		return "timeout"
	case StatusThrottled:
		return "throttled"
	default:
		return "error"
	}
}

// Result is the typed outcome of fetching one symbol. It is consumed
// immediately by the caller and never cached.
type Result struct {
	Quote    Quote
	Status   Status
	Provider string
	Err      error
}

func (r Result) OK() bool { return r.Status == StatusOK }

// Classify maps a provider error to a Status.
func Classify(err error) Status {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return StatusNotFound
	}
	if errors.Is(err, ErrThrottled) {
		return StatusThrottled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusTimeout
	}
	return StatusError
}
