package platform

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindProtocol   ErrorKind = "protocol"
	KindTimeout    ErrorKind = "timeout"
	KindTransient  ErrorKind = "transient"
)

// Error is the classified failure a Publisher returns. The worker branches
// on Kind; only transient errors are retried, and only at the job level.
type Error struct {
	Kind    ErrorKind
	Code    int // platform error code, 0 when none
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapTransient(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification from any error. Errors that did not
// come out of a Publisher count as transient, so an unexpected failure is
// retried rather than terminal.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// Retryable reports whether the worker may re-attempt after err.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
