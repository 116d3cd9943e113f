package shared

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures for callers and transports.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
)

// Error is a typed domain failure. Code identifies the precise failure,
// Kind the category it belongs to.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

var (
	// ErrValidation matches every validation failure.
	ErrValidation = &Error{Kind: KindValidation}
	// ErrNotFound matches every missing-resource failure.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrInvalidState matches every rejected state transition.
	ErrInvalidState = &Error{Kind: KindInvalidState}
	// ErrConflict matches duplicate requests and concurrent modifications.
	ErrConflict = &Error{Kind: KindConflict}
)

// NewValidation declares a validation failure.
func NewValidation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NewNotFound declares a missing-resource failure.
func NewNotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// NewInvalidState declares a rejected state transition.
func NewInvalidState(code, message string) *Error {
	return &Error{Kind: KindInvalidState, Code: code, Message: message}
}

// NewConflict declares a conflict failure.
func NewConflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by code when the target names one, otherwise by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Kind == e.Kind
}

// With returns a copy carrying an extra detail.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Wrap returns a copy that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf reports the kind of err, or an empty kind for untyped errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
