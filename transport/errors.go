package transport

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies transport failures.
type Kind int

const (
	// KindNetwork covers connection failures and timeouts.
	KindNetwork Kind = iota + 1
	// KindStatus is a response with a non-2xx status code.
	KindStatus
	// KindCancelled is a request abandoned before it completed. It is never
	// a reason to retry or back off.
	KindCancelled
	// KindDecode is a response body that could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindCancelled:
		return "cancelled"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by transports.
type Error struct {
	Kind   Kind
	Method string
	URL    string
	Status int // set for KindStatus
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Cancelled reports whether the request was abandoned rather than failed.
func (e *Error) Cancelled() bool { return e.Kind == KindCancelled }

// IsCancelled reports whether err is a cancelled transport error or a
// context cancellation.
func IsCancelled(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindCancelled
	}
	return errors.Is(err, context.Canceled)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
