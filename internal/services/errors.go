package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindNotFound
	KindOutOfRange
	KindConflict
	KindUpstream
	KindInvalidFilter
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindOutOfRange:
		return "out_of_range"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindInvalidFilter:
		return "invalid_filter"
	}
	return "internal"
}

// Error is returned by services. Message is safe to show to clients; Err is
// the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
