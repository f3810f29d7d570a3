// Package apperr classifies failures so callers can decide whether an error
// aborts a whole request or only degrades one unit of work.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindUpstream
	KindPersistence
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindUpstream:
		return "upstream"
	case KindPersistence:
		return "persistence"
	case KindNotification:
		return "notification"
	default:
		return "internal"
	}
}

// Error carries a Kind, the failing operation and a message safe to show to clients.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Msg
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func Authorization(op, msg string) error {
	return &Error{Kind: KindAuthorization, Op: op, Msg: msg}
}

func Upstream(op, msg string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Msg: msg, Err: err}
}

func Persistence(op, msg string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Msg: msg, Err: err}
}

func Notification(op, msg string, err error) error {
	return &Error{Kind: KindNotification, Op: op, Msg: msg, Err: err}
}

// kinded is implemented by typed errors of other packages (StorageError,
// RecognitionError) so they classify without importing each other.
type kinded interface {
	ErrorKind() Kind
}

// KindOf reports the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// Message returns the client-facing message of err, or fallback when err is unclassified.
func Message(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Msg != "" {
		return ae.Msg
	}
	return fallback
}

// HTTPStatus maps a Kind to the response code used by the API.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
