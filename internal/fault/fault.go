// Package fault defines the error kinds the core distinguishes and that the
// HTTP surface maps to status codes.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers deciding whether to retry, fix their
// request, or run a missing preceding step.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindUnprocessable
	KindNotFound
	KindPreconditionFailed
	KindUpstreamDataQuality
	KindUpstreamTimeout
	KindUpstreamUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnprocessable:
		return "unprocessable_document"
	case KindNotFound:
		return "not_found"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindUpstreamDataQuality:
		return "upstream_data_quality"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "unknown"
	}
}

// Error is an error with a kind. Msg is safe to show to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the operation as-is.
// The core itself never retries.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstreamTimeout || e.Kind == KindUpstreamUnavailable
}

// KindOf extracts the kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return newf(KindInvalidInput, format, args...)
}

// Unprocessable builds a KindUnprocessable error: the input was well-formed
// but nothing useful could be pulled out of it.
func Unprocessable(format string, args ...any) *Error {
	return newf(KindUnprocessable, format, args...)
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Precondition builds a KindPreconditionFailed error.
func Precondition(format string, args ...any) *Error {
	return newf(KindPreconditionFailed, format, args...)
}

// DataQuality builds a KindUpstreamDataQuality error.
func DataQuality(format string, args ...any) *Error {
	return newf(KindUpstreamDataQuality, format, args...)
}

// Timeout wraps err as a KindUpstreamTimeout error.
func Timeout(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstreamTimeout, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Unavailable wraps err as a KindUpstreamUnavailable error.
func Unavailable(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Msg: fmt.Sprintf(format, args...), Err: err}
}
