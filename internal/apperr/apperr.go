// Package apperr defines the error taxonomy shared by the scheduling, admission and
// wellness packages. Every business-rule failure is an *Error carrying a Kind so the
// request layer can render it without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidState
	KindCapacityExceeded
	KindValidation
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid state"
	case KindCapacityExceeded:
		return "capacity exceeded"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

// Is matches on kind. CapacityExceeded and Validation are specializations of
// InvalidState, so errors.Is(err, ErrInvalidState) holds for them too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.kind == e.kind {
		return true
	}
	return t.kind == KindInvalidState && (e.kind == KindCapacityExceeded || e.kind == KindValidation)
}

var (
	ErrNotFound         = &Error{kind: KindNotFound, msg: "not found"}
	ErrConflict         = &Error{kind: KindConflict, msg: "conflict"}
	ErrInvalidState     = &Error{kind: KindInvalidState, msg: "invalid state"}
	ErrCapacityExceeded = &Error{kind: KindCapacityExceeded, msg: "capacity exceeded"}
	ErrValidation       = &Error{kind: KindValidation, msg: "validation failed"}
	ErrForbidden        = &Error{kind: KindForbidden, msg: "forbidden"}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

func Conflict(format string, args ...any) *Error { return New(KindConflict, format, args...) }

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func CapacityExceeded(format string, args ...any) *Error {
	return New(KindCapacityExceeded, format, args...)
}

func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }

func Forbidden(format string, args ...any) *Error { return New(KindForbidden, format, args...) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}
