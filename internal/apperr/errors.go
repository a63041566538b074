// Package apperr defines the error taxonomy shared by the matching and
// reconciliation services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and reporting.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindStateConflict       Kind = "state_conflict"
	KindOverAllocation      Kind = "over_allocation"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindInternal            Kind = "internal"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrStateConflict       = errors.New("illegal state transition")
	ErrOverAllocation      = errors.New("receivable over-allocated")
	ErrConcurrencyConflict = errors.New("concurrent modification")
)

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) and friends match on Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrStateConflict:
		return e.Kind == KindStateConflict
	case ErrOverAllocation:
		return e.Kind == KindOverAllocation
	case ErrConcurrencyConflict:
		return e.Kind == KindConcurrencyConflict
	}
	return false
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) error {
	return newError(KindValidation, op, format, args...)
}

func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, format, args...)
}

func StateConflict(op, format string, args ...any) error {
	return newError(KindStateConflict, op, format, args...)
}

func OverAllocation(op, format string, args ...any) error {
	return newError(KindOverAllocation, op, format, args...)
}

func ConcurrencyConflict(op, format string, args ...any) error {
	return newError(KindConcurrencyConflict, op, format, args...)
}

// Wrap attaches kind and op to an underlying error.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: "failed", Err: err}
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the operation may succeed if attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
