package core

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindInternal        ErrorKind = "internal"
)

// Error is the tagged error surfaced by the assistant gatekeeper. The
// API layer maps the kind to a status code; everything downstream
// (LLM, store) is wrapped as internal.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func unauthenticatedErr(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthenticated, Err: fmt.Errorf(format, args...)}
}

func internalErr(err error, context string) *Error {
	return &Error{Kind: KindInternal, Err: fmt.Errorf("%s: %w", context, err)}
}

// KindOf returns the kind of a gatekeeper error, defaulting to
// internal for untagged errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
