// Package apperr defines the application error taxonomy shared by the trust
// pipeline services and the API layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for propagation and HTTP mapping.
type Kind string

const (
	// KindValidation marks malformed or missing input. Never retried.
	KindValidation Kind = "validation"
	// KindUnauthorized marks a missing verified user identity.
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden marks an authenticated caller lacking the required role.
	KindForbidden Kind = "forbidden"
	// KindNotFound marks an absent referenced entity.
	KindNotFound Kind = "not_found"
	// KindConflict marks a state collision: duplicate claim, already-claimed
	// resource, claim no longer pending, promotion race loser.
	KindConflict Kind = "conflict"
	// KindUpstream marks an AI collaborator failure, isolated per batch item.
	KindUpstream Kind = "upstream"
	// KindStorage marks a transaction failure; the whole operation rolls back.
	KindStorage Kind = "storage"
)

// Error is an application error with a classification and a user-facing
// message. Storage errors keep the cause for server-side logs but present an
// opaque message to callers.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an application error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause to an application error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func NotFound(entity, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found: %s", entity, id))
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func Upstream(err error, message string) *Error {
	return Wrap(err, KindUpstream, message)
}

// Storage wraps a store-layer failure. The caller-visible message stays
// opaque; the cause is retained for logging.
func Storage(err error) *Error {
	return Wrap(err, KindStorage, "storage operation failed")
}

// Classify returns err unchanged when it already carries a Kind, and wraps
// anything else as a storage failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Storage(err)
}

// KindOf extracts the Kind from an error chain. Unclassified errors are
// treated as storage failures so they never leak internals.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the message safe to show to callers.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind == KindStorage {
			return "internal storage error"
		}
		return ae.Message
	}
	return "internal error"
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
