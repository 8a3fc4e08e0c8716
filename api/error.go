package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every error this service can return. Each kind maps to
// exactly one HTTP status class; the routing layer relies on that mapping.
type Kind int

const (
	KindInvalidFilterExpression Kind = iota + 1
	KindUnknownField
	KindUnsupportedFunction
	KindConflictingFieldSelection
	KindInvalidLimit
	KindMalformedToken
	KindCollectionNotFound
	KindNotFound
	KindAlreadyExists
	KindPreconditionFailed
	KindInvalidPatch
	KindStoreExecutionFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidFilterExpression:
		return "InvalidFilterExpression"
	case KindUnknownField:
		return "UnknownField"
	case KindUnsupportedFunction:
		return "UnsupportedFunction"
	case KindConflictingFieldSelection:
		return "ConflictingFieldSelection"
	case KindInvalidLimit:
		return "InvalidLimit"
	case KindMalformedToken:
		return "MalformedToken"
	case KindCollectionNotFound:
		return "CollectionNotFound"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	case KindInvalidPatch:
		return "InvalidPatch"
	case KindStoreExecutionFailed:
		return "StoreExecutionFailed"
	}
	return "Unknown"
}

// HTTPStatus returns the status code class contract for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidFilterExpression, KindUnknownField, KindUnsupportedFunction,
		KindConflictingFieldSelection, KindInvalidLimit, KindMalformedToken,
		KindInvalidPatch:
		return http.StatusBadRequest
	case KindCollectionNotFound, KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindStoreExecutionFailed:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Error carries the classification plus the operation and target it failed
// on. Store-side causes are wrapped, never reinterpreted.
type Error struct {
	Kind    Kind
	Op      string
	Target  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Target != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Op, e.Target, msg)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches operation context to an underlying error. If the cause
// is already classified its kind is preserved.
func WrapError(kind Kind, op string, target string, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Kind: ae.Kind, Op: op, Target: target, Err: err}
	}
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// KindOf extracts the classification of err, or KindStoreExecutionFailed
// when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStoreExecutionFailed
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
