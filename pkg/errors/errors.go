// Package errors defines the error taxonomy shared by every sanesearch
// component. Each failure carries one of five kinds so callers can branch with
// errors.Is without parsing messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrPrecondition       = errors.New("precondition violation")
	ErrStorage            = errors.New("storage error")
	ErrQueryParse         = errors.New("query parse error")
	ErrDocumentValidation = errors.New("document validation error")
)

// Precondition reasons. They are always reported together with
// ErrPrecondition.
var (
	ErrNoSchema        = errors.New("no schema")
	ErrNoIndex         = errors.New("no index")
	ErrNoWriter        = errors.New("no index writer")
	ErrNoDefaultFields = errors.New("no default search fields")
	ErrIndexExists     = errors.New("index already set")
)

// Error is a classified failure. Op names the session operation that failed.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an Error of the given kind.
func New(kind error, op string, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind error, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Precondition reports a missing piece of session state.
func Precondition(op string, reason error) *Error {
	return &Error{Kind: ErrPrecondition, Op: op, Err: reason}
}

// KindOf returns the kind of err, or nil when err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrConfiguration,
		ErrPrecondition,
		ErrStorage,
		ErrQueryParse,
		ErrDocumentValidation,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// HTTPStatusCode maps err to the status an HTTP surface reports for it.
func HTTPStatusCode(err error) int {
	switch KindOf(err) {
	case ErrQueryParse, ErrDocumentValidation:
		return http.StatusBadRequest
	case ErrPrecondition:
		return http.StatusConflict
	case ErrConfiguration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers importing this
// package under the name errors keep working.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
