// Package errs implements the error-kind taxonomy from the core
// specification (§7): a single concrete error type tagged with a
// coarse Kind, instead of the teacher's ad hoc fmt.Errorf("...: %w", err)
// wrapping scattered through internal/catalog, internal/membership and
// internal/circulation.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a coarse error classification independent of any particular
// transport's status codes.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Conflict
	VersionConflict
	AlreadyExists
	PermissionDenied
	Unauthenticated
	Domain
	Database
	EventStore
	Serialization
	SchemaNotFound
	MaxVersionsExceeded
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case VersionConflict:
		return "version_conflict"
	case AlreadyExists:
		return "already_exists"
	case PermissionDenied:
		return "permission_denied"
	case Unauthenticated:
		return "unauthenticated"
	case Domain:
		return "domain"
	case Database:
		return "database"
	case EventStore:
		return "event_store"
	case Serialization:
		return "serialization"
	case SchemaNotFound:
		return "schema_not_found"
	case MaxVersionsExceeded:
		return "max_versions_exceeded"
	default:
		return "internal"
	}
}

// Error is the canonical error shape passed between layers. It never
// carries raw SQL text or a stack trace — only a short, user-safe
// message plus the classification needed to pick a retry/status policy.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error carrying the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind/message context to an underlying error, preserving
// it for errors.Is/As and logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error,
// defaulting to Internal otherwise — Internal errors are terminal and
// never retried.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// VersionConflictDetail carries the expected/actual stream versions for
// an optimistic-lock failure, per spec §3.2/§4.1/§8.
type VersionConflictDetail struct {
	Expected int
	Actual   int
}

func (d VersionConflictDetail) Error() string {
	return fmt.Sprintf("version conflict: expected %d, actual %d", d.Expected, d.Actual)
}

// NewVersionConflict builds the canonical VersionConflict error
// carrying expected/actual versions as its cause, so callers can
// errors.As into VersionConflictDetail.
func NewVersionConflict(expected, actual int) *Error {
	return &Error{
		Kind:    VersionConflict,
		Message: "optimistic concurrency check failed",
		Cause:   VersionConflictDetail{Expected: expected, Actual: actual},
	}
}

// NotFoundDetail carries the missing entity's type and id.
type NotFoundDetail struct {
	Entity string
	ID     string
}

func (d NotFoundDetail) Error() string {
	return fmt.Sprintf("%s %s not found", d.Entity, d.ID)
}

func NewNotFound(entity, id string) *Error {
	return &Error{
		Kind:    NotFound,
		Message: NotFoundDetail{Entity: entity, ID: id}.Error(),
		Cause:   NotFoundDetail{Entity: entity, ID: id},
	}
}
