package library

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling. Branch on Kind,
// not on Error() strings.
type Kind string

const (
	KindUnauthorized      Kind = "Unauthorized"
	KindNotFound          Kind = "NotFound"
	KindAlreadyResolved   Kind = "AlreadyResolved"
	KindInsufficientFunds Kind = "InsufficientFunds"
	KindExecutionFailed   Kind = "ExecutionFailed"
	KindInvalid           Kind = "Invalid"
)

// Error is the structured error returned by every identity entry point.
//
// Op names the entry point that failed (e.g. "addKey"). Cause is set for
// ExecutionFailed errors and carries the executor's error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %s", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewError(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind Kind, op string, cause error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
